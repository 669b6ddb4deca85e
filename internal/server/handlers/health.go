package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"aquasim-server/internal/shared/response"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type RedisChecker interface {
	Healthy(ctx context.Context) bool
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
}

type HealthHandler struct {
	db    Pinger
	redis RedisChecker
}

// NewHealthHandler reports redis as "disabled" when redis is nil
func NewHealthHandler(db Pinger, redis RedisChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		logger.Warn("Database ping failed", "error", err)
		dbStatus = "disconnected"
		status = "degraded"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "connected"
		if !h.redis.Healthy(ctx) {
			logger.Warn("Redis ping failed")
			redisStatus = "disconnected"
			status = "degraded"
		}
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  dbStatus,
		Redis:     redisStatus,
	}

	code := http.StatusOK
	if dbStatus != "connected" {
		code = http.StatusServiceUnavailable
	}
	response.Success(w, code, resp)
}
