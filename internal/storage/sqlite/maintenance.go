package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// ArchiveStale archives active non-critical entries that were never
// accessed within the zero-access window, or accessed fewer than the
// threshold within the longer window. Idempotent: archived rows no longer
// match the predicate.
func (s *Store) ArchiveStale(ctx context.Context, p storage.DecayParams, now time.Time) (int, error) {
	zeroCutoff := now.AddDate(0, 0, -p.StaleZeroAccessDays)
	lowCutoff := now.AddDate(0, 0, -p.StaleLowAccessDays)

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET status = 'archived'
		WHERE status = 'active'
		  AND importance != 'critical'
		  AND (
			(access_count = 0 AND created_at < ?)
			OR (access_count < ? AND created_at < ?)
		  )`,
		zeroCutoff, p.LowAccessThreshold, lowCutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: archive stale: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: archive stale rows affected: %w", err)
	}
	return int(n), nil
}

// DecayImportance downgrades high->medium and medium->low per the windows.
// Critical entries are never touched. The medium->low update runs first so
// an entry downgraded to medium in this pass drops at most one level per
// pass, even when it already satisfies both windows.
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
		ageCutoff := now.AddDate(0, 0, -step.ageDays)
		idleCutoff := now.AddDate(0, 0, -step.idleDays)

		res, err := s.db.ExecContext(ctx, `
			UPDATE memories
			SET importance = ?
			WHERE status = 'active'
			  AND importance = ?
			  AND created_at < ?
			  AND (last_accessed_at IS NULL OR last_accessed_at < ?)`,
			step.to, step.from, ageCutoff, idleCutoff)
		if err != nil {
			return total, fmt.Errorf("sqlite: decay %s->%s: %w", step.from, step.to, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("sqlite: decay rows affected: %w", err)
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
		`UPDATE memories SET access_count = access_count + ? WHERE id = ?`,
		count, keeperID)
	if err != nil {
		return fmt.Errorf("sqlite: merge access count into %d: %w", keeperID, err)
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

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM memories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: health status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status types.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan status count: %w", err)
		}
		report.ByStatus[status] = count
		report.TotalEntries += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: health status counts: %w", err)
	}

	agentRows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, COUNT(*)
		FROM memories WHERE status = 'active'
		GROUP BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: health agent counts: %w", err)
	}
	defer agentRows.Close()
	for agentRows.Next() {
		var agent string
		var count int
		if err := agentRows.Scan(&agent, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan agent count: %w", err)
		}
		report.ByAgent[agent] = count
	}
	if err := agentRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: health agent counts: %w", err)
	}

	categoryRows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM memories WHERE status = 'active'
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: health category counts: %w", err)
	}
	defer categoryRows.Close()
	for categoryRows.Next() {
		var category string
		var count int
		if err := categoryRows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan category count: %w", err)
		}
		report.ByCategory[category] = count
	}
	if err := categoryRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: health category counts: %w", err)
	}

	var active, embedded int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(embedding)
		FROM memories WHERE status = 'active'`).Scan(&active, &embedded)
	if err != nil {
		return nil, fmt.Errorf("sqlite: health embedding coverage: %w", err)
	}
	if active > 0 {
		report.EmbeddingCoverage = float64(embedded) / float64(active)
	}

	staleCutoff := now.AddDate(0, 0, -staleAfterDays)
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM memories
		WHERE status = 'active' AND access_count = 0 AND created_at < ?`,
		staleCutoff).Scan(&report.StaleCount)
	if err != nil {
		return nil, fmt.Errorf("sqlite: health stale count: %w", err)
	}

	if report.TotalEntries > 0 {
		report.ContradictionRate = float64(report.ByStatus[types.StatusContradicted]) / float64(report.TotalEntries)
	}

	return report, nil
}

// AppendConflict records a conflict resolution in the append-only log.
func (s *Store) AppendConflict(ctx context.Context, rec *types.ConflictRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conflict_log (winner_id, loser_id, similarity, resolution, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.WinnerID, rec.LoserID, rec.Similarity, rec.Resolution, rec.Reason, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: append conflict record: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
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
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conflicts: %w", err)
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
			return nil, fmt.Errorf("sqlite: scan conflict record: %w", err)
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
		return fmt.Errorf("sqlite: marshal run errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO maintenance_log (run_id, started_at, finished_at, archived, decayed, consolidated, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt,
		run.Archived, run.Decayed, run.Consolidated, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("sqlite: append maintenance run: %w", err)
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
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list maintenance runs: %w", err)
	}
	defer rows.Close()

	var runs []types.MaintenanceRun
	for rows.Next() {
		var run types.MaintenanceRun
		var errorsJSON string
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt,
			&run.Archived, &run.Decayed, &run.Consolidated, &errorsJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan maintenance run: %w", err)
		}
		if errorsJSON != "" && errorsJSON != "[]" {
			if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
				return nil, fmt.Errorf("sqlite: invalid run errors JSON: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
