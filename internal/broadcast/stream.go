package broadcast

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"aquasim-server/internal/shared/errors"
	"aquasim-server/internal/shared/response"
	"aquasim-server/internal/telemetry"
)

const heartbeatInterval = 25 * time.Second

// StreamHandler serves GET /api/stream/{kind} as Server-Sent Events
type StreamHandler struct {
	hub       *Hub
	heartbeat time.Duration
}

func NewStreamHandler(hub *Hub) *StreamHandler {
	return &StreamHandler{hub: hub, heartbeat: heartbeatInterval}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "stream")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, ok := telemetry.ParseKind(r.PathValue("kind"))
	if !ok {
		response.Error(w, r, logger, errors.NotFoundf("unknown organism %q", r.PathValue("kind")))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, r, logger, errors.WrapInternal("streaming unsupported", fmt.Errorf("%T is not a flusher", w)))
		return
	}

	events, cancel := h.hub.Subscribe(kind, 0)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed to %s\n\n", kind)
	flusher.Flush()

	logger = logger.With("kind", kind, "remote_addr", r.RemoteAddr)
	logger.Debug("Stream subscriber connected", "subscribers", h.hub.Subscribers(kind))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("Stream subscriber disconnected", "dropped_total", h.hub.Dropped())
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data); err != nil {
				logger.Debug("Stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
