package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"aquasim-server/internal/shared/errors"
	"aquasim-server/internal/shared/response"
	"aquasim-server/internal/telemetry"
)

// Resetter returns an organism to genesis; implemented by the scheduler
type Resetter interface {
	ResetOrganism(ctx context.Context, kind telemetry.Kind) (int64, error)
}

type ResetResponse struct {
	Organism telemetry.Kind `json:"organism"`
	Deleted  int64          `json:"deleted"`
}

type TelemetryHandler struct {
	service  *telemetry.Service
	resetter Resetter
}

func NewTelemetryHandler(service *telemetry.Service, resetter Resetter) *TelemetryHandler {
	return &TelemetryHandler{service: service, resetter: resetter}
}

// WithKind pins the {kind} path value so routes can be registered per organism
func WithKind(kind telemetry.Kind, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.SetPathValue("kind", kind.String())
		next(w, r)
	}
}

func kindFromPath(r *http.Request) (telemetry.Kind, error) {
	raw := r.PathValue("kind")
	kind, ok := telemetry.ParseKind(raw)
	if !ok {
		return "", errors.NotFoundf("unknown organism %q", raw)
	}
	return kind, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.WrapValidation("invalid "+name+" parameter", err)
	}
	return v, nil
}

func (h *TelemetryHandler) Latest(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "latest")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, err := kindFromPath(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	rec, err := h.service.Latest(r.Context(), kind)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, rec)
}

func (h *TelemetryHandler) Range(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "range")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, err := kindFromPath(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var q telemetry.RangeQuery
	if q.Start, err = queryInt64(r, "start"); err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if r.URL.Query().Has("end") {
		end, err := queryInt64(r, "end")
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		q.End = &end
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	q.Limit = int(limit)

	recs, err := h.service.Range(r.Context(), kind, q)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, recs)
}

func (h *TelemetryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "recent")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, err := kindFromPath(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	count, err := queryInt64(r, "count")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	recs, err := h.service.Recent(r.Context(), kind, int(count))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, recs)
}

func (h *TelemetryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "stats")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, err := kindFromPath(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), kind)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, stats)
}

func (h *TelemetryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "reset")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, err := kindFromPath(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	deleted, err := h.resetter.ResetOrganism(r.Context(), kind)
	if err != nil {
		response.ErrorWithMessage(w, r, logger, errors.WrapInternal("failed to reset "+kind.String(), err),
			"failed to reset "+kind.String())
		return
	}

	logger.Info("Organism reset", "organism", kind, "deleted", deleted)
	response.Success(w, http.StatusOK, ResetResponse{Organism: kind, Deleted: deleted})
}
