package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"aquasim-server/internal/broadcast"
	"aquasim-server/internal/growth"
	"aquasim-server/internal/metrics"
	"aquasim-server/internal/middleware"
	"aquasim-server/internal/sampler"
	"aquasim-server/internal/scheduler"
	"aquasim-server/internal/seed"
	"aquasim-server/internal/server"
	serverHandlers "aquasim-server/internal/server/handlers"
	"aquasim-server/internal/shared/config"
	"aquasim-server/internal/shared/redis"
	"aquasim-server/internal/telemetry"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tick scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), config.GlobalConfig)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.With("component", "server")
	logger.Info("Starting aquasim server",
		"version", version,
		"environment", cfg.Server.Environment,
		"driver", cfg.Database.Driver)

	db, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.ConnectWith(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var seeded seed.Result
	if cfg.Seed.OnStartup {
		if seeded, err = seed.New(repo, seedConfig(cfg), slog.Default()).Run(ctx); err != nil {
			return fmt.Errorf("failed to seed historical data: %w", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !cfg.AuthConfigured() {
		logger.Warn("JWT_SECRET not set, reset endpoints will reject every request")
	}

	m := metrics.New()
	hub := broadcast.NewHub(slog.Default())

	var publisher scheduler.Publisher = hub
	var redisChecker serverHandlers.RedisChecker
	if rdb != nil {
		redisChecker = rdb
		publisher = broadcast.NewRedisPublisher(rdb.Client, cfg.Redis.ChannelPrefix, slog.Default())
		relay := broadcast.NewRelay(rdb.Client, cfg.Redis.ChannelPrefix, hub, slog.Default())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil {
				logger.Error("Redis relay stopped", "error", err)
			}
		}()
	}

	trucha := growth.NewTrucha(truchaParams(cfg), sampler.New(cfg.Simulation.Seed), repo)
	lechuga := growth.NewLechuga(growth.DefaultLechugaParams(), sampler.New(cfg.Simulation.Seed+1), repo)
	if !seeded.Skipped && seeded.LastTrucha != nil {
		// continue from the backfill without reading it back
		trucha.Restore(seeded.LastTrucha)
		lechuga.Restore(seeded.LastLechuga)
	}
	sched := scheduler.New(scheduler.Config{
		Interval:   cfg.Simulation.Interval,
		StartDelay: cfg.Simulation.StartDelay,
	}, trucha, lechuga, repo, publisher, m, slog.Default())

	if cfg.Simulation.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(ctx); err != nil {
				logger.Error("Scheduler stopped", "error", err)
			}
		}()
	} else {
		logger.Info("Simulation disabled, serving stored data only")
	}

	routes := server.NewRoutes(server.Deps{
		DB:               db,
		Redis:            redisChecker,
		TelemetryService: telemetry.NewService(repo, slog.Default()),
		Resetter:         sched,
		Hub:              hub,
		Metrics:          m.Handler(),
		RateLimiter:      middleware.NewRateLimiter(ctx, cfg.RateLimit),
		JWTSecret:        cfg.Auth.JWTSecret,
		Logger:           slog.Default(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.NewCORS(cfg.Frontend).Middleware(routes.Setup()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// streams end with the process context so Shutdown is not held open
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}
