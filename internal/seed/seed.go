package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aquasim-server/internal/growth"
	"aquasim-server/internal/sampler"
	"aquasim-server/internal/telemetry"
)

type Store interface {
	Count(ctx context.Context, kind telemetry.Kind) (int64, error)
	AppendTruchaBatch(ctx context.Context, recs []telemetry.TruchaRecord) error
	AppendLechugaBatch(ctx context.Context, recs []telemetry.LechugaRecord) error
}

type Config struct {
	Days      int
	BatchSize int
	Seed      uint64
	Trucha    growth.TruchaParams
	Lechuga   growth.LechugaParams
}

type Result struct {
	Skipped  bool
	Truchas  int
	Lechugas int
	Duration time.Duration

	// last generated record of each series, nil when skipped
	LastTrucha  *telemetry.TruchaRecord
	LastLechuga *telemetry.LechugaRecord
}

// Seeder backfills history so dashboards have data on a fresh database. It
// runs the same generators as the scheduler, one tick per 15 simulated
// seconds, with timestamps laid out so the last record lands at now.
type Seeder struct {
	store  Store
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

func New(store Store, cfg Config, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:  store,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "seeder"),
	}
}

func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

func (s *Seeder) ticks() int64 {
	return int64(s.cfg.Days) * 86400 / growth.TickStep
}

// Run seeds both series, but only when both are empty
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	logger := s.logger.With("operation", "run", "days", s.cfg.Days, "batch_size", s.cfg.BatchSize)
	start := time.Now()

	if s.cfg.Days <= 0 || s.cfg.BatchSize <= 0 {
		return Result{}, fmt.Errorf("seed days and batch size must be positive, got %d and %d", s.cfg.Days, s.cfg.BatchSize)
	}

	truchas, err := s.store.Count(ctx, telemetry.KindTrucha)
	if err != nil {
		return Result{}, err
	}
	lechugas, err := s.store.Count(ctx, telemetry.KindLechuga)
	if err != nil {
		return Result{}, err
	}
	if truchas > 0 || lechugas > 0 {
		logger.Info("Existing data found, skipping seed", "truchas", truchas, "lechugas", lechugas)
		return Result{Skipped: true}, nil
	}

	base := s.now().Add(-time.Duration(s.cfg.Days) * 24 * time.Hour)
	logger.Info("Generating historical data", "ticks_per_organism", s.ticks(), "from", base)

	var result Result
	if result.Truchas, result.LastTrucha, err = s.seedTruchas(ctx, base); err != nil {
		return result, fmt.Errorf("failed to seed truchas: %w", err)
	}
	if result.Lechugas, result.LastLechuga, err = s.seedLechugas(ctx, base); err != nil {
		return result, fmt.Errorf("failed to seed lechugas: %w", err)
	}

	result.Duration = time.Since(start)
	logger.Info("Historical data generated",
		"truchas", result.Truchas,
		"lechugas", result.Lechugas,
		"duration", result.Duration)
	return result, nil
}

func (s *Seeder) seedTruchas(ctx context.Context, base time.Time) (int, *telemetry.TruchaRecord, error) {
	var ts time.Time
	gen := growth.NewTrucha(s.cfg.Trucha, sampler.New(s.cfg.Seed), nil,
		growth.WithClock(func() time.Time { return ts }),
		growth.WithLogger(s.logger))

	batch := make([]telemetry.TruchaRecord, 0, s.cfg.BatchSize)
	var last telemetry.TruchaRecord
	total := 0
	for i := int64(1); i <= s.ticks(); i++ {
		ts = base.Add(time.Duration(i*growth.TickStep) * time.Second)
		last = gen.NextTick(ctx)
		batch = append(batch, last)

		if len(batch) == s.cfg.BatchSize || i == s.ticks() {
			if err := s.store.AppendTruchaBatch(ctx, batch); err != nil {
				return total, nil, err
			}
			total += len(batch)
			batch = batch[:0]
			s.logProgress("truchas", total)
		}
	}
	return total, &last, nil
}

func (s *Seeder) seedLechugas(ctx context.Context, base time.Time) (int, *telemetry.LechugaRecord, error) {
	var ts time.Time
	gen := growth.NewLechuga(s.cfg.Lechuga, sampler.New(s.cfg.Seed+1), nil,
		growth.WithClock(func() time.Time { return ts }),
		growth.WithLogger(s.logger))

	batch := make([]telemetry.LechugaRecord, 0, s.cfg.BatchSize)
	var last telemetry.LechugaRecord
	total := 0
	for i := int64(1); i <= s.ticks(); i++ {
		ts = base.Add(time.Duration(i*growth.TickStep) * time.Second)
		last = gen.NextTick(ctx)
		batch = append(batch, last)

		if len(batch) == s.cfg.BatchSize || i == s.ticks() {
			if err := s.store.AppendLechugaBatch(ctx, batch); err != nil {
				return total, nil, err
			}
			total += len(batch)
			batch = batch[:0]
			s.logProgress("lechugas", total)
		}
	}
	return total, &last, nil
}

func (s *Seeder) logProgress(organism string, total int) {
	// one line per 100 batches keeps long seeds readable
	if total%(s.cfg.BatchSize*100) == 0 {
		s.logger.Info("Seed progress", "organism", organism, "records", total, "of", s.ticks())
	}
}
