// Package sqlite provides a SQLite implementation of the storage interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Ensure Store satisfies the combined interface at compile time.
var _ storage.Store = (*Store)(nil)

// New opens a SQLite database, configures WAL mode, and applies the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load; WAL
	// mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying database handle. Used by tests and by callers
// that need direct query access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store persists a new entry and returns its assigned ID.
func (s *Store) Store(ctx context.Context, entry *types.MemoryEntry) (int64, error) {
	if entry == nil {
		return 0, storage.ErrInvalidInput
	}
	if err := entry.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	entry.Normalize()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	keywordsJSON, err := json.Marshal(entry.Keywords)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to marshal keywords: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (
			agent_id, content, category, keywords, keywords_text,
			importance, embedding, status, superseded_by,
			access_count, last_accessed_at, visibility, source_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.AgentID,
		entry.Content,
		entry.Category,
		string(keywordsJSON),
		keywordsText(entry.Keywords),
		string(entry.Importance),
		encodeVector(entry.Embedding),
		string(entry.Status),
		entry.SupersededBy,
		entry.AccessCount,
		nullableTime(entry.LastAccessedAt),
		string(entry.Visibility),
		entry.SourceAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to store entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to read inserted id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// entryColumns is the canonical column list for scanning memory rows.
const entryColumns = `
	id, agent_id, content, category, keywords, importance, embedding,
	status, superseded_by, access_count, last_accessed_at,
	visibility, source_agent, created_at`

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, id int64) (*types.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM memories WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get entry %d: %w", id, err)
	}
	return entry, nil
}

// ListActive returns active entries for the agent, most important and most
// recent first.
func (s *Store) ListActive(ctx context.Context, agentID string, limit int) ([]*types.MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = ? AND status = 'active'
		ORDER BY CASE importance
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			ELSE 1 END DESC,
			created_at DESC
		LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list active entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// UpdateStatus sets the lifecycle status and, when provided, the
// superseded_by back-reference. An existing back-reference is preserved.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status types.Status, supersededBy *int64) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", storage.ErrInvalidInput, status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET status = ?,
			superseded_by = COALESCE(superseded_by, ?)
		WHERE id = ?`,
		string(status), supersededBy, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update status of %d: %w", id, err)
	}
	return requireRow(res, id)
}

// SetImportance overwrites the importance level of an entry.
func (s *Store) SetImportance(ctx context.Context, id int64, importance types.Importance) error {
	if !importance.IsValid() {
		return fmt.Errorf("%w: importance %q", storage.ErrInvalidInput, importance)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET importance = ? WHERE id = ?`,
		string(importance), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set importance of %d: %w", id, err)
	}
	return requireRow(res, id)
}

// IncrementAccess bumps access telemetry for the given entries. Missing IDs
// are silently ignored; the update is a side effect of recall and must not
// fail the caller over a stale ID.
func (s *Store) IncrementAccess(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET access_count = access_count + 1,
			last_accessed_at = ?
		WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: failed to increment access: %w", err)
	}
	return nil
}

// Delete hard-deletes an entry. Administrative use only.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete entry %d: %w", id, err)
	}
	return requireRow(res, id)
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected for %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// rowScanner lets scanEntry work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*types.MemoryEntry, error) {
	var (
		entry        types.MemoryEntry
		keywordsJSON string
		embedding    []byte
		superseded   sql.NullInt64
		lastAccess   sql.NullTime
	)

	err := row.Scan(
		&entry.ID,
		&entry.AgentID,
		&entry.Content,
		&entry.Category,
		&keywordsJSON,
		&entry.Importance,
		&embedding,
		&entry.Status,
		&superseded,
		&entry.AccessCount,
		&lastAccess,
		&entry.Visibility,
		&entry.SourceAgent,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &entry.Keywords); err != nil {
			return nil, fmt.Errorf("invalid keywords JSON for entry %d: %w", entry.ID, err)
		}
	}
	entry.Embedding = decodeVector(embedding)
	if superseded.Valid {
		entry.SupersededBy = &superseded.Int64
	}
	if lastAccess.Valid {
		t := lastAccess.Time
		entry.LastAccessedAt = &t
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*types.MemoryEntry, error) {
	var entries []*types.MemoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// keywordsText renders the keyword set as " k1 k2 k3 " so single keywords
// can be prefiltered in SQL with LIKE '% token %'.
func keywordsText(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	return " " + strings.Join(keywords, " ") + " "
}

// encodeVector serialises a vector as little-endian float32. Returns nil
// for an empty vector so the column stays NULL.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. Truncated blobs yield nil.
func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
