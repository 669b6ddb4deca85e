// Package growth holds the per-organism generators that turn accumulated
// simulation time into the next measurement. A generator owns its clock,
// its last emitted values and its sampler; nothing is shared between them.
package growth

import (
	"context"
	"log/slog"
	"math"
	"time"

	"aquasim-server/internal/telemetry"
)

// TickStep is the simulated time, in seconds, that one tick advances
const TickStep int64 = 15

const (
	secondsPerDay   = 86400.0
	secondsPerMonth = 30 * secondsPerDay
)

// TruchaHistory returns the most recent persisted fish record, nil when empty
type TruchaHistory interface {
	LatestTrucha(ctx context.Context) (*telemetry.TruchaRecord, error)
}

// LechugaHistory returns the most recent persisted crop record, nil when empty
type LechugaHistory interface {
	LatestLechuga(ctx context.Context) (*telemetry.LechugaRecord, error)
}

// Range is an inclusive [Min, Max] interval
type Range struct {
	Min float64
	Max float64
}

func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2.0
}

// State is a read-only view of a generator
type State struct {
	Initialized    bool
	ElapsedSeconds int64
	Ticks          int64
}

type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides the wall clock used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(component string, opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
