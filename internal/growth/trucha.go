package growth

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"aquasim-server/internal/sampler"
	"aquasim-server/internal/telemetry"
)

// EnvVariable describes one water reading of the fish tank. Normal ticks draw
// clamp(Base + N(0, StdDev), Min, Max); anomaly ticks pick a side at random
// and step LowSpan below Min or HighSpan above Max, bounded by Floor and Ceil.
type EnvVariable struct {
	Base     float64
	StdDev   float64
	Min      float64
	Max      float64
	LowSpan  float64
	HighSpan float64
	Floor    float64
	Ceil     float64
}

func (v EnvVariable) sample(s *sampler.Sampler, anomaly bool) float64 {
	if anomaly {
		if s.Float64() < 0.5 {
			return math.Max(v.Floor, v.Min-s.Float64()*v.LowSpan)
		}
		return math.Min(v.Ceil, v.Max+s.Float64()*v.HighSpan)
	}
	return clamp(v.Base+s.Gaussian(0, v.StdDev), v.Min, v.Max)
}

type TruchaParams struct {
	// GrowthTable maps whole months to the expected length range; the last
	// entry applies from that month on.
	GrowthTable      []Range
	FirstMonthStdDev float64
	LengthStdDev     float64
	MinLengthCm      float64
	MaxLengthCm      float64
	AnomalyPeriod    int64
	Temperature      EnvVariable
	Conductivity     EnvVariable
	PH               EnvVariable
}

func DefaultTruchaParams() TruchaParams {
	return TruchaParams{
		GrowthTable: []Range{
			{2.5, 2.5},
			{5.0, 5.0},
			{8.0, 8.0},
			{12.0, 12.0},
			{20.0, 20.0},
			{30.0, 35.0},
			{38.0, 42.0},
			{45.0, 48.0},
			{50.0, 55.0},
		},
		FirstMonthStdDev: 0.1,
		LengthStdDev:     0.3,
		MinLengthCm:      2.5,
		MaxLengthCm:      55.25,
		AnomalyPeriod:    500,
		Temperature: EnvVariable{
			Base: 15.0, StdDev: 1.5, Min: 12, Max: 18,
			LowSpan: 3, HighSpan: 4, Floor: 8, Ceil: 22,
		},
		Conductivity: EnvVariable{
			Base: 550.0, StdDev: 100, Min: 300, Max: 800,
			LowSpan: 80, HighSpan: 100, Floor: 200, Ceil: 900,
		},
		PH: EnvVariable{
			Base: 7.75, StdDev: 0.3, Min: 7.0, Max: 8.5,
			LowSpan: 0.6, HighSpan: 0.5, Floor: 6.2, Ceil: 9.0,
		},
	}
}

func (p TruchaParams) genesisLength() float64 {
	return p.GrowthTable[0].Min
}

func (p TruchaParams) lastMonth() int {
	return len(p.GrowthTable) - 1
}

// Trucha generates fish measurements. All methods are safe for concurrent use;
// the mutex also guarantees at most one effective initialization per lifetime
// (until Reset).
type Trucha struct {
	mu      sync.Mutex
	params  TruchaParams
	sampler *sampler.Sampler
	history TruchaHistory
	now     func() time.Time
	logger  *slog.Logger

	initialized bool
	elapsed     int64
	length      float64
	ticks       int64
}

// NewTrucha builds a generator; history may be nil, in which case it always
// starts from genesis.
func NewTrucha(params TruchaParams, s *sampler.Sampler, history TruchaHistory, opts ...Option) *Trucha {
	o := buildOptions("trucha_generator", opts)
	return &Trucha{
		params:  params,
		sampler: s,
		history: history,
		now:     o.now,
		logger:  o.logger,
		length:  params.genesisLength(),
	}
}

// Initialize recovers state from the most recent persisted record. A failing
// history lookup falls back to genesis and is only logged.
func (t *Trucha) Initialize(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initializeLocked(ctx)
}

// Restore sets state from last (nil means genesis). No-op once initialized.
func (t *Trucha) Restore(last *telemetry.TruchaRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return
	}
	t.restoreLocked(last)
}

func (t *Trucha) initializeLocked(ctx context.Context) {
	if t.initialized {
		return
	}
	logger := t.logger.With("operation", "initialize")

	if t.history == nil {
		t.restoreLocked(nil)
		return
	}

	last, err := t.history.LatestTrucha(ctx)
	if err != nil {
		logger.Warn("Failed to recover state from store, starting from genesis", "error", err)
		t.restoreLocked(nil)
		return
	}

	t.restoreLocked(last)
	logger.Info("Generator state recovered",
		"elapsed_seconds", t.elapsed,
		"length_cm", t.length,
		"ticks", t.ticks)
}

func (t *Trucha) restoreLocked(last *telemetry.TruchaRecord) {
	if last == nil {
		t.elapsed = 0
		t.length = t.params.genesisLength()
	} else {
		t.elapsed = last.ElapsedSeconds
		t.length = last.LengthCm
	}
	t.ticks = t.elapsed / TickStep
	t.initialized = true
}

// NextTick advances simulated time by one step and returns the new record
func (t *Trucha) NextTick(ctx context.Context) telemetry.TruchaRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.initializeLocked(ctx)

	t.elapsed += TickStep
	t.ticks++

	months := float64(t.elapsed) / secondsPerMonth
	anomaly := t.ticks%t.params.AnomalyPeriod == 0

	// draw order is part of reproducibility: environment first, then length
	temperature := t.params.Temperature.sample(t.sampler, anomaly)
	conductivity := t.params.Conductivity.sample(t.sampler, anomaly)
	ph := t.params.PH.sample(t.sampler, anomaly)

	target := clamp(t.targetLength(months), t.params.MinLengthCm, t.params.MaxLengthCm)
	t.length = telemetry.Round4(math.Max(t.length, target))

	if anomaly {
		t.logger.Debug("Anomaly tick", "elapsed_seconds", t.elapsed, "ticks", t.ticks)
	}

	return telemetry.TruchaRecord{
		Timestamp:        t.now(),
		ElapsedSeconds:   t.elapsed,
		LengthCm:         t.length,
		TemperatureC:     telemetry.Round4(temperature),
		ConductivityUsCm: telemetry.Round4(conductivity),
		PH:               telemetry.Round4(ph),
		Anomaly:          anomaly,
	}
}

// targetLength interpolates between the midpoints of the current and next
// month brackets. The first month stays at genesis size with small jitter, and
// from the last month on the length is drawn uniformly from its range.
func (t *Trucha) targetLength(months float64) float64 {
	table := t.params.GrowthTable
	last := t.params.lastMonth()

	if months >= float64(last) {
		return t.sampler.Uniform(table[last].Min, table[last].Max)
	}

	month := int(math.Floor(months))
	fraction := months - float64(month)

	if month <= 0 {
		return table[0].Min + t.sampler.Gaussian(0, t.params.FirstMonthStdDev)
	}

	current := table[month].Mid()
	next := table[min(month+1, last)].Mid()
	interpolated := current + (next-current)*fraction

	return interpolated + t.sampler.Gaussian(0, t.params.LengthStdDev)
}

// Reset returns the generator to genesis; the next use re-initializes from history
func (t *Trucha) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.elapsed = 0
	t.length = t.params.genesisLength()
	t.ticks = 0
	t.initialized = false
	t.logger.Info("Generator reset to genesis")
}

func (t *Trucha) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Initialized: t.initialized, ElapsedSeconds: t.elapsed, Ticks: t.ticks}
}

// LengthCm returns the last emitted length
func (t *Trucha) LengthCm() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.length
}
