package main

import (
	"fmt"
	"log/slog"

	"aquasim-server/internal/growth"
	"aquasim-server/internal/seed"
	"aquasim-server/internal/shared/config"
	"aquasim-server/internal/shared/database"
	"aquasim-server/internal/telemetry"
)

// openStore connects, migrates and returns the repository over the configured database
func openStore(cfg *config.Config) (*database.DB, *telemetry.Repository, error) {
	db, err := database.ConnectWith(cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, telemetry.NewRepository(db, slog.Default()), nil
}

func truchaParams(cfg *config.Config) growth.TruchaParams {
	params := growth.DefaultTruchaParams()
	params.AnomalyPeriod = cfg.Simulation.AnomalyPeriod
	return params
}

func seedConfig(cfg *config.Config) seed.Config {
	return seed.Config{
		Days:      cfg.Seed.Days,
		BatchSize: cfg.Seed.BatchSize,
		Seed:      cfg.Simulation.Seed,
		Trucha:    truchaParams(cfg),
		Lechuga:   growth.DefaultLechugaParams(),
	}
}
