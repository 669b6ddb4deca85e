package server

import (
	"log/slog"
	"net/http"

	"aquasim-server/internal/broadcast"
	"aquasim-server/internal/middleware"
	serverHandlers "aquasim-server/internal/server/handlers"
	"aquasim-server/internal/shared/database"
	"aquasim-server/internal/telemetry"
	telemetryHandlers "aquasim-server/internal/telemetry/handlers"
)

type Routes struct {
	db               *database.DB
	redis            serverHandlers.RedisChecker
	telemetryService *telemetry.Service
	resetter         telemetryHandlers.Resetter
	hub              *broadcast.Hub
	metrics          http.Handler
	rateLimiter      *middleware.RateLimiter
	jwtSecret        string
	logger           *slog.Logger
}

type Deps struct {
	DB               *database.DB
	Redis            serverHandlers.RedisChecker // nil when Redis is disabled
	TelemetryService *telemetry.Service
	Resetter         telemetryHandlers.Resetter
	Hub              *broadcast.Hub
	Metrics          http.Handler
	RateLimiter      *middleware.RateLimiter
	JWTSecret        string
	Logger           *slog.Logger
}

func NewRoutes(deps Deps) *Routes {
	return &Routes{
		db:               deps.DB,
		redis:            deps.Redis,
		telemetryService: deps.TelemetryService,
		resetter:         deps.Resetter,
		hub:              deps.Hub,
		metrics:          deps.Metrics,
		rateLimiter:      deps.RateLimiter,
		jwtSecret:        deps.JWTSecret,
		logger:           deps.Logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := r.logger.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.redis)
	telemetryHandler := telemetryHandlers.NewTelemetryHandler(r.telemetryService, r.resetter)
	streamHandler := broadcast.NewStreamHandler(r.hub)

	limited := func(h http.HandlerFunc) http.Handler {
		return r.rateLimiter.Middleware(h)
	}

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.Handle("/metrics", r.metrics)
	mux.Handle("/api/stream/{kind}", streamHandler)

	var public, admin []string
	for _, kind := range []telemetry.Kind{telemetry.KindTrucha, telemetry.KindLechuga} {
		prefix := "/api/" + kind.String()

		mux.Handle(prefix+"/latest", limited(telemetryHandlers.WithKind(kind, telemetryHandler.Latest)))
		mux.Handle(prefix+"/range", limited(telemetryHandlers.WithKind(kind, telemetryHandler.Range)))
		mux.Handle(prefix+"/recent", limited(telemetryHandlers.WithKind(kind, telemetryHandler.Recent)))
		mux.Handle(prefix+"/stats", limited(telemetryHandlers.WithKind(kind, telemetryHandler.Stats)))
		public = append(public, prefix+"/latest", prefix+"/range", prefix+"/recent", prefix+"/stats")

		// Admin-only endpoints (operator token with admin role)
		mux.Handle(prefix+"/reset", middleware.RequireAdmin(r.jwtSecret, telemetryHandlers.WithKind(kind, telemetryHandler.Reset)))
		admin = append(admin, prefix+"/reset")
	}

	logger.Info("Routes configured successfully",
		"public_endpoints", public,
		"stream_endpoints", []string{"/api/stream/truchas", "/api/stream/lechugas"},
		"admin_endpoints", admin,
		"admin_enabled", r.jwtSecret != "",
	)

	return mux
}
