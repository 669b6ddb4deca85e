package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aquasim-server/internal/growth"
	"aquasim-server/internal/metrics"
	"aquasim-server/internal/telemetry"
)

// Store is the write side the scheduler needs
type Store interface {
	AppendTrucha(ctx context.Context, rec *telemetry.TruchaRecord) error
	AppendLechuga(ctx context.Context, rec *telemetry.LechugaRecord) error
	DeleteAll(ctx context.Context, kind telemetry.Kind) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, kind telemetry.Kind, record any) error
}

// Recorder receives tick outcomes; *metrics.Metrics implements it
type Recorder interface {
	TickGenerated(organism, outcome string, elapsed int64)
	Anomaly()
	TickDuration(d time.Duration)
	Reset(organism string)
}

type Config struct {
	Interval   time.Duration
	StartDelay time.Duration
}

// Scheduler drives both generators. Tick and ResetOrganism share one mutex so a
// reset never interleaves with a tick in flight.
type Scheduler struct {
	mu        sync.Mutex
	cfg       Config
	trucha    *growth.Trucha
	lechuga   *growth.Lechuga
	store     Store
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
}

func New(cfg Config, trucha *growth.Trucha, lechuga *growth.Lechuga, store Store, publisher Publisher, recorder Recorder, logger *slog.Logger) *Scheduler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Scheduler{
		cfg:       cfg,
		trucha:    trucha,
		lechuga:   lechuga,
		store:     store,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.With("component", "scheduler"),
	}
}

// Run ticks until ctx is cancelled. Tick failures are logged and never stop
// the loop; the next tick is scheduled Interval after the previous one ends.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.logger.With("operation", "run", "interval", s.cfg.Interval)

	if !sleep(ctx, s.cfg.StartDelay) {
		logger.Info("Scheduler cancelled before start")
		return nil
	}

	s.trucha.Initialize(ctx)
	s.lechuga.Initialize(ctx)
	logger.Info("Scheduler started",
		"trucha_elapsed_seconds", s.trucha.State().ElapsedSeconds,
		"lechuga_elapsed_seconds", s.lechuga.State().ElapsedSeconds)

	for {
		if err := s.Tick(ctx); err != nil {
			logger.Error("Tick failed", "error", err)
		}

		if !sleep(ctx, s.cfg.Interval) {
			logger.Info("Scheduler stopped")
			return nil
		}
	}
}

// Tick advances both organisms once. Each organism persists then publishes;
// a record that failed to persist is not published. Errors from both
// organisms are joined.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { s.recorder.TickDuration(time.Since(start)) }()

	return errors.Join(s.tickTrucha(ctx), s.tickLechuga(ctx))
}

func (s *Scheduler) tickTrucha(ctx context.Context) error {
	kind := telemetry.KindTrucha
	rec := s.trucha.NextTick(ctx)
	if rec.Anomaly {
		s.recorder.Anomaly()
		s.logger.Info("Anomaly tick generated",
			"organism", kind,
			"elapsed_seconds", rec.ElapsedSeconds,
			"temperature_c", rec.TemperatureC,
			"conductivity_us_cm", rec.ConductivityUsCm,
			"ph", rec.PH)
	}

	if err := s.store.AppendTrucha(ctx, &rec); err != nil {
		s.recorder.TickGenerated(kind.String(), metrics.OutcomeStoreError, rec.ElapsedSeconds)
		return fmt.Errorf("%s: persist elapsed %d: %w", kind, rec.ElapsedSeconds, err)
	}
	return s.publish(ctx, kind, rec.ElapsedSeconds, rec)
}

func (s *Scheduler) tickLechuga(ctx context.Context) error {
	kind := telemetry.KindLechuga
	rec := s.lechuga.NextTick(ctx)

	if err := s.store.AppendLechuga(ctx, &rec); err != nil {
		s.recorder.TickGenerated(kind.String(), metrics.OutcomeStoreError, rec.ElapsedSeconds)
		return fmt.Errorf("%s: persist elapsed %d: %w", kind, rec.ElapsedSeconds, err)
	}
	return s.publish(ctx, kind, rec.ElapsedSeconds, rec)
}

func (s *Scheduler) publish(ctx context.Context, kind telemetry.Kind, elapsed int64, rec any) error {
	if err := s.publisher.Publish(ctx, kind, rec); err != nil {
		s.recorder.TickGenerated(kind.String(), metrics.OutcomePublishError, elapsed)
		return fmt.Errorf("%s: publish elapsed %d: %w", kind, elapsed, err)
	}

	s.recorder.TickGenerated(kind.String(), metrics.OutcomeOK, elapsed)
	s.logger.Debug("Tick persisted and published", "organism", kind, "elapsed_seconds", elapsed)
	return nil
}

// ResetOrganism deletes every persisted record of kind and returns its
// generator to genesis. The generator is untouched when the delete fails.
func (s *Scheduler) ResetOrganism(ctx context.Context, kind telemetry.Kind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("operation", "reset", "organism", kind)

	var reset func()
	switch kind {
	case telemetry.KindTrucha:
		reset = s.trucha.Reset
	case telemetry.KindLechuga:
		reset = s.lechuga.Reset
	default:
		return 0, fmt.Errorf("unknown organism %q", kind)
	}

	deleted, err := s.store.DeleteAll(ctx, kind)
	if err != nil {
		logger.Error("Failed to delete records, generator left unchanged", "error", err)
		return 0, err
	}

	reset()
	s.recorder.Reset(kind.String())
	logger.Info("Organism reset to genesis", "deleted", deleted)
	return deleted, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type nopRecorder struct{}

func (nopRecorder) TickGenerated(string, string, int64) {}
func (nopRecorder) Anomaly()                            {}
func (nopRecorder) TickDuration(time.Duration)          {}
func (nopRecorder) Reset(string)                        {}
