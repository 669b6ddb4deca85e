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

// Cycle is a seasonal reading: Base + Amplitude·sin(2π·days/PeriodDays) plus
// N(0, StdDev) jitter, clamped to [Min, Max]. Base is also the optimum the
// growth rate is penalised against.
type Cycle struct {
	Base       float64
	Amplitude  float64
	PeriodDays float64
	StdDev     float64
	Min        float64
	Max        float64
}

func (c Cycle) sample(s *sampler.Sampler, days float64) float64 {
	seasonal := c.Base + c.Amplitude*math.Sin(2*math.Pi*days/c.PeriodDays)
	return clamp(seasonal+s.Gaussian(0, c.StdDev), c.Min, c.Max)
}

type LechugaParams struct {
	GenesisHeightCm    float64
	GenesisLeafAreaCm2 float64
	MaxHeightCm        float64
	MaxLeafAreaCm2     float64
	MaturityDays       float64
	InflectionDay      float64

	BaseRate           float64
	MinRate            float64
	MaxRate            float64
	TemperaturePenalty float64
	HumidityPenalty    float64
	PHPenalty          float64

	Temperature Cycle
	Humidity    Cycle
	PH          Cycle
}

func DefaultLechugaParams() LechugaParams {
	return LechugaParams{
		GenesisHeightCm:    1.0,
		GenesisLeafAreaCm2: 10.0,
		MaxHeightCm:        16.0,
		MaxLeafAreaCm2:     2000.0,
		MaturityDays:       90,
		InflectionDay:      30,

		BaseRate:           0.08,
		MinRate:            0.03,
		MaxRate:            0.12,
		TemperaturePenalty: 0.003,
		HumidityPenalty:    0.002,
		PHPenalty:          0.01,

		Temperature: Cycle{Base: 22, Amplitude: 1, PeriodDays: 30, StdDev: 0.5, Min: 15, Max: 30},
		Humidity:    Cycle{Base: 70, Amplitude: 10, PeriodDays: 25, StdDev: 2, Min: 50, Max: 90},
		PH:          Cycle{Base: 6.5, Amplitude: 0.1, PeriodDays: 40, StdDev: 0.05, Min: 5.5, Max: 7.5},
	}
}

// GrowthRate slows logistic growth as the environment drifts from its optimum
func (p LechugaParams) GrowthRate(temperature, humidity, ph float64) float64 {
	rate := p.BaseRate -
		p.TemperaturePenalty*math.Abs(temperature-p.Temperature.Base) -
		p.HumidityPenalty*math.Abs(humidity-p.Humidity.Base) -
		p.PHPenalty*math.Abs(ph-p.PH.Base)
	return clamp(rate, p.MinRate, p.MaxRate)
}

// LeafArea models 2-D leaf expansion: area scales with the squared height ratio
func (p LechugaParams) LeafArea(heightCm float64) float64 {
	ratio := heightCm / p.MaxHeightCm
	return ratio * ratio * p.MaxLeafAreaCm2
}

// Lechuga generates crop measurements; see Trucha for the locking contract
type Lechuga struct {
	mu      sync.Mutex
	params  LechugaParams
	sampler *sampler.Sampler
	history LechugaHistory
	now     func() time.Time
	logger  *slog.Logger

	initialized bool
	elapsed     int64
	height      float64
	leafArea    float64
	ticks       int64
}

func NewLechuga(params LechugaParams, s *sampler.Sampler, history LechugaHistory, opts ...Option) *Lechuga {
	o := buildOptions("lechuga_generator", opts)
	return &Lechuga{
		params:   params,
		sampler:  s,
		history:  history,
		now:      o.now,
		logger:   o.logger,
		height:   params.GenesisHeightCm,
		leafArea: params.GenesisLeafAreaCm2,
	}
}

func (l *Lechuga) Initialize(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initializeLocked(ctx)
}

func (l *Lechuga) Restore(last *telemetry.LechugaRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return
	}
	l.restoreLocked(last)
}

func (l *Lechuga) initializeLocked(ctx context.Context) {
	if l.initialized {
		return
	}
	logger := l.logger.With("operation", "initialize")

	if l.history == nil {
		l.restoreLocked(nil)
		return
	}

	last, err := l.history.LatestLechuga(ctx)
	if err != nil {
		logger.Warn("Failed to recover state from store, starting from genesis", "error", err)
		l.restoreLocked(nil)
		return
	}

	l.restoreLocked(last)
	logger.Info("Generator state recovered",
		"elapsed_seconds", l.elapsed,
		"height_cm", l.height,
		"leaf_area_cm2", l.leafArea)
}

func (l *Lechuga) restoreLocked(last *telemetry.LechugaRecord) {
	if last == nil {
		l.elapsed = 0
		l.height = l.params.GenesisHeightCm
		l.leafArea = l.params.GenesisLeafAreaCm2
	} else {
		l.elapsed = last.ElapsedSeconds
		l.height = last.HeightCm
		l.leafArea = last.LeafAreaCm2
	}
	l.ticks = l.elapsed / TickStep
	l.initialized = true
}

func (l *Lechuga) NextTick(ctx context.Context) telemetry.LechugaRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.initializeLocked(ctx)

	l.elapsed += TickStep
	l.ticks++

	p := l.params
	days := float64(l.elapsed) / secondsPerDay

	temperature := p.Temperature.sample(l.sampler, days)
	humidity := p.Humidity.sample(l.sampler, days)
	ph := p.PH.sample(l.sampler, days)

	var height, leafArea float64
	if days >= p.MaturityDays {
		height = p.MaxHeightCm
		leafArea = p.MaxLeafAreaCm2
	} else {
		rate := p.GrowthRate(temperature, humidity, ph)
		height = p.MaxHeightCm / (1 + math.Exp(-rate*(days-p.InflectionDay)))
		leafArea = p.LeafArea(height)
	}

	l.height = telemetry.Round4(math.Max(l.height, math.Min(height, p.MaxHeightCm)))
	l.leafArea = telemetry.Round4(math.Max(l.leafArea, math.Min(leafArea, p.MaxLeafAreaCm2)))

	return telemetry.LechugaRecord{
		Timestamp:      l.now(),
		ElapsedSeconds: l.elapsed,
		HeightCm:       l.height,
		LeafAreaCm2:    l.leafArea,
		TemperatureC:   telemetry.Round4(temperature),
		HumidityPct:    telemetry.Round4(humidity),
		PH:             telemetry.Round4(ph),
	}
}

func (l *Lechuga) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.elapsed = 0
	l.height = l.params.GenesisHeightCm
	l.leafArea = l.params.GenesisLeafAreaCm2
	l.ticks = 0
	l.initialized = false
	l.logger.Info("Generator reset to genesis")
}

func (l *Lechuga) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{Initialized: l.initialized, ElapsedSeconds: l.elapsed, Ticks: l.ticks}
}

// HeightCm returns the last emitted height
func (l *Lechuga) HeightCm() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}
