package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/vector"
	"github.com/scrypster/mnemo/pkg/types"
)

// KeywordCandidates returns active entries whose keyword set intersects the
// query tokens, plus high/critical entries younger than recentDays. The
// pool cap ranks by token-overlap count, then recency.
func (s *Store) KeywordCandidates(ctx context.Context, agentID string, tokens []string, recentDays int, limit int) ([]*types.MemoryEntry, error) {
	if limit <= 0 {
		limit = 30
	}

	args := []any{agentID}
	var clauses []string
	var overlapTerms []string

	for _, tok := range tokens {
		args = append(args, "% "+escapeLike(tok)+" %")
		clauses = append(clauses, fmt.Sprintf("keywords_text LIKE $%d", len(args)))
		overlapTerms = append(overlapTerms, fmt.Sprintf("(CASE WHEN keywords_text LIKE $%d THEN 1 ELSE 0 END)", len(args)))
	}

	args = append(args, time.Now().UTC().AddDate(0, 0, -recentDays))
	clauses = append(clauses, fmt.Sprintf("(importance IN ('high','critical') AND created_at > $%d)", len(args)))

	orderBy := "created_at DESC"
	if len(overlapTerms) > 0 {
		orderBy = "(" + strings.Join(overlapTerms, " + ") + ") DESC, created_at DESC"
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = $1 AND status = 'active'
		  AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY `+orderBy+`
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: keyword candidates: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SemanticCandidates ranks active embedded entries by cosine similarity.
// Uses the pgvector index when available, otherwise scans in Go.
func (s *Store) SemanticCandidates(ctx context.Context, agentID string, vec []float32, limit int) ([]storage.ScoredEntry, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	if s.pgvectorAvailable {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+entryColumns+`, 1 - (embedding_vec <=> $1::vector) AS similarity
			FROM memories
			WHERE agent_id = $2 AND status = 'active' AND embedding_vec IS NOT NULL
			ORDER BY embedding_vec <=> $1::vector
			LIMIT $3`,
			pgvector.NewVector(vec), agentID, limit)
		if err != nil {
			return nil, fmt.Errorf("postgres: semantic candidates: %w", err)
		}
		defer rows.Close()

		var scored []storage.ScoredEntry
		for rows.Next() {
			entry, sim, err := scanScoredEntry(rows)
			if err != nil {
				return nil, fmt.Errorf("postgres: scan semantic candidate: %w", err)
			}
			scored = append(scored, storage.ScoredEntry{Entry: entry, Similarity: vector.Similarity(sim)})
		}
		return scored, rows.Err()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = $1 AND status = 'active' AND embedding IS NOT NULL`,
		agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: semantic candidates: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	scored := rankBySimilarity(entries, vec)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// NearestNeighbor returns the most similar active embedded entry for the
// same agent and category, or nil when the comparison set is empty.
func (s *Store) NearestNeighbor(ctx context.Context, agentID, category string, vec []float32) (*storage.ScoredEntry, error) {
	if len(vec) == 0 {
		return nil, nil
	}

	if s.pgvectorAvailable {
		row := s.db.QueryRowContext(ctx, `
			SELECT `+entryColumns+`, 1 - (embedding_vec <=> $1::vector) AS similarity
			FROM memories
			WHERE agent_id = $2 AND category = $3 AND status = 'active'
			  AND embedding_vec IS NOT NULL
			ORDER BY embedding_vec <=> $1::vector
			LIMIT 1`,
			pgvector.NewVector(vec), agentID, category)

		entry, sim, err := scanScoredEntry(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("postgres: nearest neighbor: %w", err)
		}
		return &storage.ScoredEntry{Entry: entry, Similarity: vector.Similarity(sim)}, nil
	}

	entries, err := s.EmbeddedActive(ctx, agentID, category)
	if err != nil {
		return nil, err
	}
	scored := rankBySimilarity(entries, vec)
	if len(scored) == 0 {
		return nil, nil
	}
	return &scored[0], nil
}

// PeerCandidates returns active shared/broadcast entries owned by cluster
// peers whose keywords intersect the tokens or whose importance is critical.
func (s *Store) PeerCandidates(ctx context.Context, peerIDs []string, tokens []string, limit int) ([]*types.MemoryEntry, error) {
	if len(peerIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	args := []any{"{" + strings.Join(peerIDs, ",") + "}"}
	clauses := []string{"importance = 'critical'"}

	for _, tok := range tokens {
		args = append(args, "% "+escapeLike(tok)+" %")
		clauses = append(clauses, fmt.Sprintf("keywords_text LIKE $%d", len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = ANY($1::text[])
		  AND status = 'active'
		  AND visibility IN ('shared','broadcast')
		  AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY created_at DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: peer candidates: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// EmbeddedActive returns every active embedded entry for one agent and
// category.
func (s *Store) EmbeddedActive(ctx context.Context, agentID, category string) ([]*types.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = $1 AND category = $2 AND status = 'active'
		  AND embedding IS NOT NULL
		ORDER BY id`, agentID, category)
	if err != nil {
		return nil, fmt.Errorf("postgres: embedded active: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// EmbeddedGroups lists the (agent, category) pairs holding at least one
// embedded active entry.
func (s *Store) EmbeddedGroups(ctx context.Context) ([]storage.AgentCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT agent_id, category
		FROM memories
		WHERE status = 'active' AND embedding IS NOT NULL
		ORDER BY agent_id, category`)
	if err != nil {
		return nil, fmt.Errorf("postgres: embedded groups: %w", err)
	}
	defer rows.Close()

	var groups []storage.AgentCategory
	for rows.Next() {
		var g storage.AgentCategory
		if err := rows.Scan(&g.AgentID, &g.Category); err != nil {
			return nil, fmt.Errorf("postgres: scan embedded group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// scanScoredEntry scans an entry row with a trailing similarity column.
func scanScoredEntry(row rowScanner) (*types.MemoryEntry, float64, error) {
	var (
		entry        types.MemoryEntry
		keywordsJSON []byte
		embedding    []byte
		superseded   sql.NullInt64
		lastAccess   sql.NullTime
		sim          float64
	)

	err := row.Scan(
		&entry.ID, &entry.AgentID, &entry.Content, &entry.Category,
		&keywordsJSON, &entry.Importance, &embedding, &entry.Status,
		&superseded, &entry.AccessCount, &lastAccess,
		&entry.Visibility, &entry.SourceAgent, &entry.CreatedAt, &sim,
	)
	if err != nil {
		return nil, 0, err
	}

	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &entry.Keywords); err != nil {
			return nil, 0, fmt.Errorf("invalid keywords JSON for entry %d: %w", entry.ID, err)
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
	return &entry, sim, nil
}

func rankBySimilarity(entries []*types.MemoryEntry, vec []float32) []storage.ScoredEntry {
	scored := make([]storage.ScoredEntry, 0, len(entries))
	for _, e := range entries {
		if !e.HasEmbedding() {
			continue
		}
		sim := vector.Similarity(vector.Cosine(vec, e.Embedding))
		scored = append(scored, storage.ScoredEntry{Entry: e, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored
}

func escapeLike(tok string) string {
	tok = strings.ReplaceAll(tok, "%", "")
	return strings.ReplaceAll(tok, "_", "")
}
