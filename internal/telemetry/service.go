package telemetry

import (
	"context"
	"log/slog"
	"math"

	"aquasim-server/internal/shared/errors"
)

const (
	DefaultRangeLimit  = 1000
	MaxRangeLimit      = 10000
	DefaultRecentCount = 100
	MaxRecentCount     = 1000
)

// RangeQuery selects records by elapsed seconds, both ends inclusive. A nil
// End means open-ended.
type RangeQuery struct {
	Start int64
	End   *int64
	Limit int
}

type rangeBounds struct {
	start, end int64
	limit      int
}

func (q RangeQuery) normalize() (rangeBounds, error) {
	b := rangeBounds{start: q.Start, end: math.MaxInt64, limit: q.Limit}
	if b.start < 0 {
		return b, errors.Validationf("start must be >= 0, got %d", b.start)
	}
	if q.End != nil {
		b.end = *q.End
	}
	if b.end < b.start {
		return b, errors.Validationf("end (%d) must not be before start (%d)", b.end, b.start)
	}
	switch {
	case b.limit <= 0:
		b.limit = DefaultRangeLimit
	case b.limit > MaxRangeLimit:
		b.limit = MaxRangeLimit
	}
	return b, nil
}

// Service is the read side of both series; results are typed per organism and
// returned as any so handlers can stay kind-agnostic.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Latest(ctx context.Context, kind Kind) (any, error) {
	logger := s.logger.With("component", "telemetry_service", "operation", "latest", "kind", kind)

	var (
		rec any
		err error
	)
	switch kind {
	case KindTrucha:
		var r *TruchaRecord
		r, err = s.repo.LatestTrucha(ctx)
		if r != nil {
			rec = r
		}
	case KindLechuga:
		var r *LechugaRecord
		r, err = s.repo.LatestLechuga(ctx)
		if r != nil {
			rec = r
		}
	default:
		return nil, errors.Validationf("unknown organism %q", kind)
	}

	if err != nil {
		return nil, errors.WrapInternal("failed to load latest record", err)
	}
	if rec == nil {
		logger.Debug("No records yet")
		return nil, errors.NotFoundf("no %s records yet", kind)
	}
	return rec, nil
}

func (s *Service) Range(ctx context.Context, kind Kind, q RangeQuery) (any, error) {
	b, err := q.normalize()
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindTrucha:
		recs, err := s.repo.TruchaRange(ctx, b.start, b.end, b.limit)
		if err != nil {
			return nil, errors.WrapInternal("failed to load range", err)
		}
		if recs == nil {
			recs = []TruchaRecord{}
		}
		return recs, nil
	case KindLechuga:
		recs, err := s.repo.LechugaRange(ctx, b.start, b.end, b.limit)
		if err != nil {
			return nil, errors.WrapInternal("failed to load range", err)
		}
		if recs == nil {
			recs = []LechugaRecord{}
		}
		return recs, nil
	}
	return nil, errors.Validationf("unknown organism %q", kind)
}

// Recent returns the last count records in ascending order
func (s *Service) Recent(ctx context.Context, kind Kind, count int) (any, error) {
	switch {
	case count <= 0:
		count = DefaultRecentCount
	case count > MaxRecentCount:
		count = MaxRecentCount
	}

	switch kind {
	case KindTrucha:
		recs, err := s.repo.RecentTruchas(ctx, count)
		if err != nil {
			return nil, errors.WrapInternal("failed to load recent records", err)
		}
		if recs == nil {
			recs = []TruchaRecord{}
		}
		return recs, nil
	case KindLechuga:
		recs, err := s.repo.RecentLechugas(ctx, count)
		if err != nil {
			return nil, errors.WrapInternal("failed to load recent records", err)
		}
		if recs == nil {
			recs = []LechugaRecord{}
		}
		return recs, nil
	}
	return nil, errors.Validationf("unknown organism %q", kind)
}

func (s *Service) Stats(ctx context.Context, kind Kind) (any, error) {
	switch kind {
	case KindTrucha:
		stats, err := s.repo.TruchaStats(ctx)
		if err != nil {
			return nil, errors.WrapInternal("failed to aggregate records", err)
		}
		if stats == nil {
			return nil, errors.NotFoundf("no %s records yet", kind)
		}
		return stats, nil
	case KindLechuga:
		stats, err := s.repo.LechugaStats(ctx)
		if err != nil {
			return nil, errors.WrapInternal("failed to aggregate records", err)
		}
		if stats == nil {
			return nil, errors.NotFoundf("no %s records yet", kind)
		}
		return stats, nil
	}
	return nil, errors.Validationf("unknown organism %q", kind)
}
