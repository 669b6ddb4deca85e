package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"aquasim-server/internal/shared/database"
)

const (
	truchaColumns  = "id, recorded_at, elapsed_seconds, length_cm, temperature_c, conductivity_us_cm, ph, anomaly"
	lechugaColumns = "id, recorded_at, elapsed_seconds, height_cm, leaf_area_cm2, temperature_c, humidity_pct, ph"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing telemetry repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindTrucha:
		return "trucha_measurements", nil
	case KindLechuga:
		return "lechuga_measurements", nil
	}
	return "", fmt.Errorf("unknown organism kind %q", kind)
}

func scanTrucha(row rowScanner) (TruchaRecord, error) {
	var rec TruchaRecord
	err := row.Scan(
		&rec.ID,
		&rec.Timestamp,
		&rec.ElapsedSeconds,
		&rec.LengthCm,
		&rec.TemperatureC,
		&rec.ConductivityUsCm,
		&rec.PH,
		&rec.Anomaly,
	)
	return rec, err
}

func scanLechuga(row rowScanner) (LechugaRecord, error) {
	var rec LechugaRecord
	err := row.Scan(
		&rec.ID,
		&rec.Timestamp,
		&rec.ElapsedSeconds,
		&rec.HeightCm,
		&rec.LeafAreaCm2,
		&rec.TemperatureC,
		&rec.HumidityPct,
		&rec.PH,
	)
	return rec, err
}

const insertTrucha = `
	INSERT INTO trucha_measurements (recorded_at, elapsed_seconds, length_cm, temperature_c, conductivity_us_cm, ph, anomaly)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

const insertLechuga = `
	INSERT INTO lechuga_measurements (recorded_at, elapsed_seconds, height_cm, leaf_area_cm2, temperature_c, humidity_pct, ph)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

// AppendTrucha persists rec and sets its ID
func (r *Repository) AppendTrucha(ctx context.Context, rec *TruchaRecord) error {
	logger := r.logger.With("component", "telemetry_repository", "operation", "append_trucha", "elapsed_seconds", rec.ElapsedSeconds)

	err := r.db.QueryRowContext(ctx, r.db.Rebind(insertTrucha),
		rec.Timestamp, rec.ElapsedSeconds, rec.LengthCm, rec.TemperatureC, rec.ConductivityUsCm, rec.PH, rec.Anomaly,
	).Scan(&rec.ID)
	if err != nil {
		logger.Error("Failed to insert trucha record", "error", err)
		return fmt.Errorf("failed to insert trucha record: %w", err)
	}

	logger.Debug("Trucha record inserted", "id", rec.ID)
	return nil
}

// AppendLechuga persists rec and sets its ID
func (r *Repository) AppendLechuga(ctx context.Context, rec *LechugaRecord) error {
	logger := r.logger.With("component", "telemetry_repository", "operation", "append_lechuga", "elapsed_seconds", rec.ElapsedSeconds)

	err := r.db.QueryRowContext(ctx, r.db.Rebind(insertLechuga),
		rec.Timestamp, rec.ElapsedSeconds, rec.HeightCm, rec.LeafAreaCm2, rec.TemperatureC, rec.HumidityPct, rec.PH,
	).Scan(&rec.ID)
	if err != nil {
		logger.Error("Failed to insert lechuga record", "error", err)
		return fmt.Errorf("failed to insert lechuga record: %w", err)
	}

	logger.Debug("Lechuga record inserted", "id", rec.ID)
	return nil
}

// withBatch runs insert for every row inside one transaction through a single
// prepared statement
func (r *Repository) withBatch(ctx context.Context, query string, n int, insert func(stmt *sql.Stmt, i int) error) error {
	tx, err := r.db.BeginTxContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error("Failed to rollback batch transaction", "error", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(query))
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := insert(stmt, i); err != nil {
			return fmt.Errorf("failed to insert batch row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// AppendTruchaBatch inserts all records in one transaction
func (r *Repository) AppendTruchaBatch(ctx context.Context, recs []TruchaRecord) error {
	if len(recs) == 0 {
		return nil
	}
	logger := r.logger.With("component", "telemetry_repository", "operation", "append_trucha_batch", "count", len(recs))

	err := r.withBatch(ctx, insertTrucha, len(recs), func(stmt *sql.Stmt, i int) error {
		rec := &recs[i]
		return stmt.QueryRowContext(ctx,
			rec.Timestamp, rec.ElapsedSeconds, rec.LengthCm, rec.TemperatureC, rec.ConductivityUsCm, rec.PH, rec.Anomaly,
		).Scan(&rec.ID)
	})
	if err != nil {
		logger.Error("Failed to insert trucha batch", "error", err)
		return err
	}

	logger.Debug("Trucha batch inserted")
	return nil
}

// AppendLechugaBatch inserts all records in one transaction
func (r *Repository) AppendLechugaBatch(ctx context.Context, recs []LechugaRecord) error {
	if len(recs) == 0 {
		return nil
	}
	logger := r.logger.With("component", "telemetry_repository", "operation", "append_lechuga_batch", "count", len(recs))

	err := r.withBatch(ctx, insertLechuga, len(recs), func(stmt *sql.Stmt, i int) error {
		rec := &recs[i]
		return stmt.QueryRowContext(ctx,
			rec.Timestamp, rec.ElapsedSeconds, rec.HeightCm, rec.LeafAreaCm2, rec.TemperatureC, rec.HumidityPct, rec.PH,
		).Scan(&rec.ID)
	})
	if err != nil {
		logger.Error("Failed to insert lechuga batch", "error", err)
		return err
	}

	logger.Debug("Lechuga batch inserted")
	return nil
}

// LatestTrucha returns the last appended record, nil when the series is empty
func (r *Repository) LatestTrucha(ctx context.Context) (*TruchaRecord, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "latest_trucha")

	query := "SELECT " + truchaColumns + " FROM trucha_measurements ORDER BY id DESC LIMIT 1"
	rec, err := scanTrucha(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("No trucha records")
			return nil, nil
		}
		logger.Error("Failed to query latest trucha record", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &rec, nil
}

// LatestLechuga returns the last appended record, nil when the series is empty
func (r *Repository) LatestLechuga(ctx context.Context) (*LechugaRecord, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "latest_lechuga")

	query := "SELECT " + lechugaColumns + " FROM lechuga_measurements ORDER BY id DESC LIMIT 1"
	rec, err := scanLechuga(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("No lechuga records")
			return nil, nil
		}
		logger.Error("Failed to query latest lechuga record", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &rec, nil
}

func queryRows[T any](ctx context.Context, r *Repository, logger *slog.Logger, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		logger.Error("Failed to query records", "error", err)
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var out []T
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			logger.Error("Failed to scan record row", "error", err)
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	logger.Debug("Records retrieved", "count", len(out))
	return out, nil
}

// TruchaRange returns records with start <= elapsed <= end in ascending order
func (r *Repository) TruchaRange(ctx context.Context, start, end int64, limit int) ([]TruchaRecord, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "trucha_range", "start", start, "end", end)
	query := "SELECT " + truchaColumns + " FROM trucha_measurements WHERE elapsed_seconds >= ? AND elapsed_seconds <= ? ORDER BY elapsed_seconds, id LIMIT ?"
	return queryRows(ctx, r, logger, scanTrucha, query, start, end, limit)
}

// LechugaRange returns records with start <= elapsed <= end in ascending order
func (r *Repository) LechugaRange(ctx context.Context, start, end int64, limit int) ([]LechugaRecord, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "lechuga_range", "start", start, "end", end)
	query := "SELECT " + lechugaColumns + " FROM lechuga_measurements WHERE elapsed_seconds >= ? AND elapsed_seconds <= ? ORDER BY elapsed_seconds, id LIMIT ?"
	return queryRows(ctx, r, logger, scanLechuga, query, start, end, limit)
}

// RecentTruchas returns the last n records in ascending order
func (r *Repository) RecentTruchas(ctx context.Context, n int) ([]TruchaRecord, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "recent_truchas", "count", n)
	query := "SELECT " + truchaColumns + " FROM (SELECT " + truchaColumns +
		" FROM trucha_measurements ORDER BY id DESC LIMIT ?) recent ORDER BY id"
	return queryRows(ctx, r, logger, scanTrucha, query, n)
}

// RecentLechugas returns the last n records in ascending order
func (r *Repository) RecentLechugas(ctx context.Context, n int) ([]LechugaRecord, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "recent_lechugas", "count", n)
	query := "SELECT " + lechugaColumns + " FROM (SELECT " + lechugaColumns +
		" FROM lechuga_measurements ORDER BY id DESC LIMIT ?) recent ORDER BY id"
	return queryRows(ctx, r, logger, scanLechuga, query, n)
}

// TruchaStats aggregates the whole series; nil when empty
func (r *Repository) TruchaStats(ctx context.Context) (*TruchaStats, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "trucha_stats")

	query := `
		SELECT COUNT(*), AVG(length_cm), MAX(length_cm), MIN(length_cm),
			AVG(temperature_c), AVG(conductivity_us_cm), AVG(ph),
			SUM(CASE WHEN anomaly THEN 1 ELSE 0 END), MAX(elapsed_seconds)
		FROM trucha_measurements`

	var stats TruchaStats
	var avgLen, maxLen, minLen, avgTemp, avgCond, avgPH sql.NullFloat64
	var anomalies, total sql.NullInt64
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Count, &avgLen, &maxLen, &minLen, &avgTemp, &avgCond, &avgPH, &anomalies, &total,
	)
	if err != nil {
		logger.Error("Failed to aggregate trucha records", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	if stats.Count == 0 {
		return nil, nil
	}

	stats.AvgLengthCm = Round4(avgLen.Float64)
	stats.MaxLengthCm = maxLen.Float64
	stats.MinLengthCm = minLen.Float64
	stats.AvgTemperatureC = Round4(avgTemp.Float64)
	stats.AvgConductivityUsCm = Round4(avgCond.Float64)
	stats.AvgPH = Round4(avgPH.Float64)
	stats.Anomalies = anomalies.Int64
	stats.TotalElapsedSeconds = total.Int64
	return &stats, nil
}

// LechugaStats aggregates the whole series; nil when empty
func (r *Repository) LechugaStats(ctx context.Context) (*LechugaStats, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "lechuga_stats")

	query := `
		SELECT COUNT(*), AVG(height_cm), MAX(height_cm), MIN(height_cm), AVG(leaf_area_cm2),
			AVG(temperature_c), AVG(humidity_pct), AVG(ph), MAX(elapsed_seconds)
		FROM lechuga_measurements`

	var stats LechugaStats
	var avgHeight, maxHeight, minHeight, avgArea, avgTemp, avgHum, avgPH sql.NullFloat64
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Count, &avgHeight, &maxHeight, &minHeight, &avgArea, &avgTemp, &avgHum, &avgPH, &total,
	)
	if err != nil {
		logger.Error("Failed to aggregate lechuga records", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}
	if stats.Count == 0 {
		return nil, nil
	}

	stats.AvgHeightCm = Round4(avgHeight.Float64)
	stats.MaxHeightCm = maxHeight.Float64
	stats.MinHeightCm = minHeight.Float64
	stats.AvgLeafAreaCm2 = Round4(avgArea.Float64)
	stats.AvgTemperatureC = Round4(avgTemp.Float64)
	stats.AvgHumidityPct = Round4(avgHum.Float64)
	stats.AvgPH = Round4(avgPH.Float64)
	stats.TotalElapsedSeconds = total.Int64
	return &stats, nil
}

func (r *Repository) Count(ctx context.Context, kind Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		r.logger.Error("Failed to count records", "kind", kind, "error", err)
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

// DeleteAll removes every record of the organism and returns how many were deleted
func (r *Repository) DeleteAll(ctx context.Context, kind Kind) (int64, error) {
	logger := r.logger.With("component", "telemetry_repository", "operation", "delete_all", "kind", kind)

	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		logger.Error("Failed to delete records", "error", err)
		return 0, fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	deleted, _ := result.RowsAffected()
	logger.Info("Records deleted", "count", deleted)
	return deleted, nil
}
