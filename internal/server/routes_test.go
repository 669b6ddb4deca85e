package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"aquasim-server/internal/auth"
	"aquasim-server/internal/broadcast"
	"aquasim-server/internal/metrics"
	"aquasim-server/internal/middleware"
	"aquasim-server/internal/shared/config"
	"aquasim-server/internal/shared/database"
	"aquasim-server/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

type resetter struct{ calls []telemetry.Kind }

func (r *resetter) ResetOrganism(_ context.Context, kind telemetry.Kind) (int64, error) {
	r.calls = append(r.calls, kind)
	return 0, nil
}

func newMux(t *testing.T) (*http.ServeMux, *resetter) {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "routes.db"),
	}}
	db, err := database.ConnectWith(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res := &resetter{}
	routes := NewRoutes(Deps{
		DB:               db,
		TelemetryService: telemetry.NewService(telemetry.NewRepository(db, logger), logger),
		Resetter:         res,
		Hub:              broadcast.NewHub(logger),
		Metrics:          metrics.New().Handler(),
		RateLimiter:      middleware.NewRateLimiter(context.Background(), config.RateLimitConfig{}),
		JWTSecret:        secret,
		Logger:           logger,
	})
	return routes.Setup(), res
}

func TestRoutes(t *testing.T) {
	mux, res := newMux(t)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/server/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/truchas/latest", http.StatusNotFound},
		{http.MethodGet, "/api/lechugas/range", http.StatusOK},
		{http.MethodGet, "/api/lechugas/recent", http.StatusOK},
		{http.MethodGet, "/api/truchas/stats", http.StatusNotFound},
		{http.MethodPost, "/api/truchas/reset", http.StatusUnauthorized},
		{http.MethodGet, "/api/algae/latest", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Empty(t, res.calls)

	token, err := auth.GenerateToken(secret, "ops", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/lechugas/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []telemetry.Kind{telemetry.KindLechuga}, res.calls)
}
