package growth

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"aquasim-server/internal/telemetry"
)

var fixedNow = time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fakeTruchaHistory struct {
	last  *telemetry.TruchaRecord
	err   error
	calls atomic.Int32
}

func (f *fakeTruchaHistory) LatestTrucha(ctx context.Context) (*telemetry.TruchaRecord, error) {
	f.calls.Add(1)
	return f.last, f.err
}

type fakeLechugaHistory struct {
	last  *telemetry.LechugaRecord
	err   error
	calls atomic.Int32
}

func (f *fakeLechugaHistory) LatestLechuga(ctx context.Context) (*telemetry.LechugaRecord, error) {
	f.calls.Add(1)
	return f.last, f.err
}

var errStoreDown = errors.New("connection refused")

func monthsToSeconds(months float64) int64 {
	return int64(months * secondsPerMonth)
}
