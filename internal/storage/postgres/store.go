// Package postgres provides a PostgreSQL implementation of the storage
// interfaces, with native pgvector cosine search when the extension is
// installed and a Go-side scan fallback when it is not.
package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

var _ storage.Store = (*Store)(nil)

// New opens a PostgreSQL connection, applies the schema, and probes for the
// pgvector extension. Vector search degrades to a Go-side scan when the
// extension is missing.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (vector search falls back to scan): %v", err)
	} else if _, err := db.Exec(MigrationPgvector); err != nil {
		log.Printf("postgres: failed to apply pgvector migration (vector search falls back to scan): %v", err)
	} else {
		s.pgvectorAvailable = true
	}

	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const entryColumns = `
	id, agent_id, content, category, keywords, importance, embedding,
	status, superseded_by, access_count, last_accessed_at,
	visibility, source_agent, created_at`

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
		return 0, fmt.Errorf("postgres: failed to marshal keywords: %w", err)
	}

	var id int64
	if s.pgvectorAvailable && entry.HasEmbedding() {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO memories (
				agent_id, content, category, keywords, keywords_text,
				importance, embedding, embedding_vec, status, superseded_by,
				access_count, last_accessed_at, visibility, source_agent, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			RETURNING id`,
			entry.AgentID, entry.Content, entry.Category, string(keywordsJSON),
			keywordsText(entry.Keywords), string(entry.Importance),
			encodeVector(entry.Embedding), pgvector.NewVector(entry.Embedding),
			string(entry.Status), entry.SupersededBy, entry.AccessCount,
			nullableTime(entry.LastAccessedAt), string(entry.Visibility),
			entry.SourceAgent, entry.CreatedAt,
		).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO memories (
				agent_id, content, category, keywords, keywords_text,
				importance, embedding, status, superseded_by,
				access_count, last_accessed_at, visibility, source_agent, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			RETURNING id`,
			entry.AgentID, entry.Content, entry.Category, string(keywordsJSON),
			keywordsText(entry.Keywords), string(entry.Importance),
			encodeVector(entry.Embedding), string(entry.Status),
			entry.SupersededBy, entry.AccessCount,
			nullableTime(entry.LastAccessedAt), string(entry.Visibility),
			entry.SourceAgent, entry.CreatedAt,
		).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to store entry: %w", err)
	}

	entry.ID = id
	return id, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, id int64) (*types.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM memories WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get entry %d: %w", id, err)
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
		WHERE agent_id = $1 AND status = 'active'
		ORDER BY CASE importance
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			ELSE 1 END DESC,
			created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list active entries: %w", err)
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
		SET status = $1,
			superseded_by = COALESCE(superseded_by, $2)
		WHERE id = $3`,
		string(status), supersededBy, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update status of %d: %w", id, err)
	}
	return requireRow(res, id)
}

// SetImportance overwrites the importance level of an entry.
func (s *Store) SetImportance(ctx context.Context, id int64, importance types.Importance) error {
	if !importance.IsValid() {
		return fmt.Errorf("%w: importance %q", storage.ErrInvalidInput, importance)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET importance = $1 WHERE id = $2`,
		string(importance), id)
	if err != nil {
		return fmt.Errorf("postgres: failed to set importance of %d: %w", id, err)
	}
	return requireRow(res, id)
}

// IncrementAccess bumps access telemetry for the given entries.
func (s *Store) IncrementAccess(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET access_count = access_count + 1,
			last_accessed_at = $1
		WHERE id = ANY($2::bigint[])`,
		time.Now().UTC(), int64Array(ids))
	if err != nil {
		return fmt.Errorf("postgres: failed to increment access: %w", err)
	}
	return nil
}

// Delete hard-deletes an entry. Administrative use only.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete entry %d: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected for %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// int64Array renders ids in PostgreSQL array literal form for = ANY($n).
func int64Array(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*types.MemoryEntry, error) {
	var (
		entry        types.MemoryEntry
		keywordsJSON []byte
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

	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &entry.Keywords); err != nil {
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
			return nil, fmt.Errorf("postgres: failed to scan entry: %w", err)
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

func keywordsText(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	return " " + strings.Join(keywords, " ") + " "
}

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
