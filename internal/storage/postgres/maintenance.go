package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// ArchiveStale archives active non-critical entries past the staleness
// windows. Idempotent: archived rows no longer match the predicate.
func (s *Store) ArchiveStale(ctx context.Context, p storage.DecayParams, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET status = 'archived'
		WHERE status = 'active'
		  AND importance != 'critical'
		  AND (
			(access_count = 0 AND created_at < $1)
			OR (access_count < $2 AND created_at < $3)
		  )`,
		now.AddDate(0, 0, -p.StaleZeroAccessDays),
		p.LowAccessThreshold,
		now.AddDate(0, 0, -p.StaleLowAccessDays))
	if err != nil {
		return 0, fmt.Errorf("postgres: archive stale: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: archive stale rows affected: %w", err)
	}
	return int(n), nil
}

// DecayImportance downgrades high->medium and medium->low per the windows.
// The medium->low update runs first so one pass drops an entry at most one
// level.
func (s *Store) DecayImportance(ctx context.Context, p storage.DecayParams, now time.Time) (int, error) {
	total := 0

	steps := []struct {
		from, to string
		ageDays  int
		idleDays int
	}{
		{"medium", "low", p.MediumAgeDays, p.MediumIdleDays},
		{"high", "medium", p.HighAgeDays, p.HighIdleDays},
	}

	for _, step := range steps {
		res, err := s.db.ExecContext(ctx, `
			UPDATE memories
			SET importance = $1
			WHERE status = 'active'
			  AND importance = $2
			  AND created_at < $3
			  AND (last_accessed_at IS NULL OR last_accessed_at < $4)`,
			step.to, step.from,
			now.AddDate(0, 0, -step.ageDays),
			now.AddDate(0, 0, -step.idleDays))
		if err != nil {
			return total, fmt.Errorf("postgres: decay %s->%s: %w", step.from, step.to, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("postgres: decay rows affected: %w", err)
		}
		total += int(n)
	}

	return total, nil
}

// MergeAccessCount adds count to the keeper's access_count.
func (s *Store) MergeAccessCount(ctx context.Context, keeperID int64, count int) error {
	if count <= 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + $1 WHERE id = $2`,
		count, keeperID)
	if err != nil {
		return fmt.Errorf("postgres: merge access count into %d: %w", keeperID, err)
	}
	return requireRow(res, keeperID)
}

// HealthSnapshot aggregates the read-only operational report.
func (s *Store) HealthSnapshot(ctx context.Context, staleAfterDays int, now time.Time) (*types.HealthReport, error) {
	report := &types.HealthReport{
		GeneratedAt: now,
		ByStatus:    make(map[types.Status]int),
		ByAgent:     make(map[string]int),
		ByCategory:  make(map[string]int),
	}

	if err := s.groupCounts(ctx,
		`SELECT status, COUNT(*) FROM memories GROUP BY status`,
		func(key string, count int) {
			report.ByStatus[types.Status(key)] = count
			report.TotalEntries += count
		}); err != nil {
		return nil, err
	}

	if err := s.groupCounts(ctx,
		`SELECT agent_id, COUNT(*) FROM memories WHERE status = 'active' GROUP BY agent_id`,
		func(key string, count int) { report.ByAgent[key] = count }); err != nil {
		return nil, err
	}

	if err := s.groupCounts(ctx,
		`SELECT category, COUNT(*) FROM memories WHERE status = 'active' GROUP BY category`,
		func(key string, count int) { report.ByCategory[key] = count }); err != nil {
		return nil, err
	}

	var active, embedded int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(embedding)
		FROM memories WHERE status = 'active'`).Scan(&active, &embedded)
	if err != nil {
		return nil, fmt.Errorf("postgres: health embedding coverage: %w", err)
	}
	if active > 0 {
		report.EmbeddingCoverage = float64(embedded) / float64(active)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM memories
		WHERE status = 'active' AND access_count = 0 AND created_at < $1`,
		now.AddDate(0, 0, -staleAfterDays)).Scan(&report.StaleCount)
	if err != nil {
		return nil, fmt.Errorf("postgres: health stale count: %w", err)
	}

	if report.TotalEntries > 0 {
		report.ContradictionRate = float64(report.ByStatus[types.StatusContradicted]) / float64(report.TotalEntries)
	}

	return report, nil
}

// groupCounts runs a (key, count) aggregation query and feeds each row to
// the collector.
func (s *Store) groupCounts(ctx context.Context, query string, collect func(key string, count int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres: health aggregation: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("postgres: scan health aggregation: %w", err)
		}
		collect(key, count)
	}
	return rows.Err()
}

// AppendConflict records a conflict resolution in the append-only log.
func (s *Store) AppendConflict(ctx context.Context, rec *types.ConflictRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conflict_log (winner_id, loser_id, similarity, resolution, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.WinnerID, rec.LoserID, rec.Similarity, rec.Resolution, rec.Reason, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("postgres: append conflict record: %w", err)
	}
	return nil
}

// ListConflicts returns the most recent conflict records, newest first.
func (s *Store) ListConflicts(ctx context.Context, limit int) ([]types.ConflictRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, winner_id, loser_id, similarity, resolution, reason, created_at
		FROM conflict_log
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list conflicts: %w", err)
	}
	defer rows.Close()

	var records []types.ConflictRecord
	for rows.Next() {
		var (
			rec    types.ConflictRecord
			winner sql.NullInt64
			sim    sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &winner, &rec.LoserID, &sim, &rec.Resolution, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan conflict record: %w", err)
		}
		if winner.Valid {
			rec.WinnerID = &winner.Int64
		}
		if sim.Valid {
			rec.Similarity = &sim.Float64
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendMaintenanceRun records one decay pass in the append-only log.
func (s *Store) AppendMaintenanceRun(ctx context.Context, run *types.MaintenanceRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("postgres: marshal run errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO maintenance_log (run_id, started_at, finished_at, archived, decayed, consolidated, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID, run.StartedAt, run.FinishedAt,
		run.Archived, run.Decayed, run.Consolidated, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("postgres: append maintenance run: %w", err)
	}
	return nil
}

// ListMaintenanceRuns returns recent decay passes, newest first.
func (s *Store) ListMaintenanceRuns(ctx context.Context, limit int) ([]types.MaintenanceRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, archived, decayed, consolidated, errors
		FROM maintenance_log
		ORDER BY run_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list maintenance runs: %w", err)
	}
	defer rows.Close()

	var runs []types.MaintenanceRun
	for rows.Next() {
		var run types.MaintenanceRun
		var errorsJSON []byte
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt,
			&run.Archived, &run.Decayed, &run.Consolidated, &errorsJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan maintenance run: %w", err)
		}
		if len(errorsJSON) > 0 {
			if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
				return nil, fmt.Errorf("postgres: invalid run errors JSON: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
