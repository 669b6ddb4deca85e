package telemetry

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"aquasim-server/internal/shared/config"
	"aquasim-server/internal/shared/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "telemetry.db"),
	}}
	db, err := database.ConnectWith(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())

	return NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func trucha(elapsed int64, length float64, anomaly bool) TruchaRecord {
	return TruchaRecord{
		Timestamp:        base.Add(time.Duration(elapsed) * time.Second),
		ElapsedSeconds:   elapsed,
		LengthCm:         length,
		TemperatureC:     15,
		ConductivityUsCm: 550,
		PH:               7.75,
		Anomaly:          anomaly,
	}
}

func lechuga(elapsed int64, height float64) LechugaRecord {
	return LechugaRecord{
		Timestamp:      base.Add(time.Duration(elapsed) * time.Second),
		ElapsedSeconds: elapsed,
		HeightCm:       height,
		LeafAreaCm2:    height * 10,
		TemperatureC:   22,
		HumidityPct:    70,
		PH:             6.5,
	}
}

func TestLatestOnEmptyStore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	tr, err := repo.LatestTrucha(ctx)
	require.NoError(t, err)
	assert.Nil(t, tr)

	lr, err := repo.LatestLechuga(ctx)
	require.NoError(t, err)
	assert.Nil(t, lr)
}

func TestAppendAndLatestTrucha(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i, length := range []float64{2.5, 2.5123, 2.6} {
		rec := trucha(int64(i+1)*15, length, i == 2)
		require.NoError(t, repo.AppendTrucha(ctx, &rec))
		assert.NotZero(t, rec.ID)
	}

	latest, err := repo.LatestTrucha(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(45), latest.ElapsedSeconds)
	assert.Equal(t, 2.6, latest.LengthCm)
	assert.True(t, latest.Anomaly)
	assert.True(t, latest.Timestamp.Equal(base.Add(45*time.Second)))
}

func TestAppendAndLatestLechuga(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := lechuga(15, 1.0)
	second := lechuga(30, 1.0042)
	require.NoError(t, repo.AppendLechuga(ctx, &first))
	require.NoError(t, repo.AppendLechuga(ctx, &second))
	assert.Greater(t, second.ID, first.ID)

	latest, err := repo.LatestLechuga(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ElapsedSeconds, latest.ElapsedSeconds)
	assert.Equal(t, 1.0042, latest.HeightCm)
	assert.InDelta(t, 10.042, latest.LeafAreaCm2, 1e-9)
}

func TestLatestFollowsAppendOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stale := trucha(3000, 12.5, false)
	fresh := trucha(15, 2.5, false)
	require.NoError(t, repo.AppendTrucha(ctx, &stale))
	require.NoError(t, repo.AppendTrucha(ctx, &fresh))

	latest, err := repo.LatestTrucha(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, fresh.ID, latest.ID)
	assert.Equal(t, int64(15), latest.ElapsedSeconds)

	oldLettuce := lechuga(6000, 9.0)
	newLettuce := lechuga(15, 1.0)
	require.NoError(t, repo.AppendLechuga(ctx, &oldLettuce))
	require.NoError(t, repo.AppendLechuga(ctx, &newLettuce))

	latestLettuce, err := repo.LatestLechuga(ctx)
	require.NoError(t, err)
	require.NotNil(t, latestLettuce)
	assert.Equal(t, newLettuce.ID, latestLettuce.ID)

	recent, err := repo.RecentTruchas(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, []int64{3000, 15}, []int64{recent[0].ElapsedSeconds, recent[1].ElapsedSeconds})
}

func TestBatchRangeAndRecent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	recs := make([]TruchaRecord, 0, 20)
	for i := 1; i <= 20; i++ {
		recs = append(recs, trucha(int64(i)*15, 2.5+float64(i)*0.01, false))
	}
	require.NoError(t, repo.AppendTruchaBatch(ctx, recs))
	for _, rec := range recs {
		assert.NotZero(t, rec.ID)
	}

	got, err := repo.TruchaRange(ctx, 30, 90, 100)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, int64(30), got[0].ElapsedSeconds)
	assert.Equal(t, int64(90), got[4].ElapsedSeconds)

	limited, err := repo.TruchaRange(ctx, 0, 300, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	recent, err := repo.RecentTruchas(ctx, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, []int64{255, 270, 285, 300}, []int64{
		recent[0].ElapsedSeconds, recent[1].ElapsedSeconds, recent[2].ElapsedSeconds, recent[3].ElapsedSeconds,
	})

	n, err := repo.Count(ctx, KindTrucha)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	n, err = repo.Count(ctx, KindLechuga)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLechugaBatchAndRange(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	recs := []LechugaRecord{lechuga(15, 1), lechuga(30, 1.1), lechuga(45, 1.2)}
	require.NoError(t, repo.AppendLechugaBatch(ctx, recs))

	got, err := repo.LechugaRange(ctx, 15, 30, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	recent, err := repo.RecentLechugas(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	assert.Equal(t, int64(45), recent[2].ElapsedSeconds)
}

func TestStats(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stats, err := repo.TruchaStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats)

	require.NoError(t, repo.AppendTruchaBatch(ctx, []TruchaRecord{
		trucha(15, 2.0, false),
		trucha(30, 3.0, true),
		trucha(45, 4.0, false),
	}))

	stats, err = repo.TruchaStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(3), stats.Count)
	assert.InDelta(t, 3.0, stats.AvgLengthCm, 1e-9)
	assert.Equal(t, 4.0, stats.MaxLengthCm)
	assert.Equal(t, 2.0, stats.MinLengthCm)
	assert.Equal(t, int64(1), stats.Anomalies)
	assert.Equal(t, int64(45), stats.TotalElapsedSeconds)

	lstats, err := repo.LechugaStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, lstats)

	require.NoError(t, repo.AppendLechugaBatch(ctx, []LechugaRecord{lechuga(15, 1), lechuga(30, 3)}))
	lstats, err = repo.LechugaStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, lstats)
	assert.Equal(t, int64(2), lstats.Count)
	assert.InDelta(t, 2.0, lstats.AvgHeightCm, 1e-9)
	assert.InDelta(t, 20.0, lstats.AvgLeafAreaCm2, 1e-9)
	assert.Equal(t, int64(30), lstats.TotalElapsedSeconds)
}

func TestDeleteAllOnlyTouchesOneSeries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendTruchaBatch(ctx, []TruchaRecord{trucha(15, 2.5, false), trucha(30, 2.5, false)}))
	require.NoError(t, repo.AppendLechugaBatch(ctx, []LechugaRecord{lechuga(15, 1)}))

	deleted, err := repo.DeleteAll(ctx, KindTrucha)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	latest, err := repo.LatestTrucha(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	n, err := repo.Count(ctx, KindLechuga)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.DeleteAll(ctx, Kind("algae"))
	assert.Error(t, err)
}
