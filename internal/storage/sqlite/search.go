package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/vector"
	"github.com/scrypster/mnemo/pkg/types"
)

// KeywordCandidates returns active entries whose keyword set intersects the
// query tokens, plus high/critical entries younger than recentDays. The
// token match is prefiltered in SQL over the denormalised keywords_text
// column, and the pool cap ranks by token-overlap count so a high-overlap
// entry is never cut in favor of newer single-token matches.
func (s *Store) KeywordCandidates(ctx context.Context, agentID string, tokens []string, recentDays int, limit int) ([]*types.MemoryEntry, error) {
	if limit <= 0 {
		limit = 30
	}

	var clauses []string
	args := []any{agentID}

	for _, tok := range tokens {
		clauses = append(clauses, "keywords_text LIKE ?")
		args = append(args, "% "+escapeLike(tok)+" %")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -recentDays)
	clauses = append(clauses, "(importance IN ('high','critical') AND created_at > ?)")
	args = append(args, cutoff)

	orderBy := "created_at DESC"
	if len(tokens) > 0 {
		terms := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			terms = append(terms, "(CASE WHEN keywords_text LIKE ? THEN 1 ELSE 0 END)")
			args = append(args, "% "+escapeLike(tok)+" %")
		}
		orderBy = "(" + strings.Join(terms, " + ") + ") DESC, created_at DESC"
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = ? AND status = 'active'
		  AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY `+orderBy+`
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: keyword candidates: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SemanticCandidates ranks the agent's active embedded entries by cosine
// similarity to the query vector. Vectors are scanned and compared in Go;
// the per-agent memory set is bounded, so a linear scan stays cheap.
func (s *Store) SemanticCandidates(ctx context.Context, agentID string, vec []float32, limit int) ([]storage.ScoredEntry, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id = ? AND status = 'active' AND embedding IS NOT NULL`,
		agentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: semantic candidates: %w", err)
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
// peers whose keywords intersect the query tokens, or whose importance is
// critical.
func (s *Store) PeerCandidates(ctx context.Context, peerIDs []string, tokens []string, limit int) ([]*types.MemoryEntry, error) {
	if len(peerIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	peerPlaceholders := strings.TrimSuffix(strings.Repeat("?,", len(peerIDs)), ",")
	args := make([]any, 0, len(peerIDs)+len(tokens)+1)
	for _, id := range peerIDs {
		args = append(args, id)
	}

	clauses := []string{"importance = 'critical'"}
	for _, tok := range tokens {
		clauses = append(clauses, "keywords_text LIKE ?")
		args = append(args, "% "+escapeLike(tok)+" %")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM memories
		WHERE agent_id IN (`+peerPlaceholders+`)
		  AND status = 'active'
		  AND visibility IN ('shared','broadcast')
		  AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY created_at DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: peer candidates: %w", err)
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
		WHERE agent_id = ? AND category = ? AND status = 'active'
		  AND embedding IS NOT NULL
		ORDER BY id`, agentID, category)
	if err != nil {
		return nil, fmt.Errorf("sqlite: embedded active: %w", err)
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
		return nil, fmt.Errorf("sqlite: embedded groups: %w", err)
	}
	defer rows.Close()

	var groups []storage.AgentCategory
	for rows.Next() {
		var g storage.AgentCategory
		if err := rows.Scan(&g.AgentID, &g.Category); err != nil {
			return nil, fmt.Errorf("sqlite: scan embedded group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// rankBySimilarity scores entries against the query vector, best first.
// Entries without a usable vector are skipped.
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

// escapeLike strips LIKE wildcards from a token. Query tokens are already
// normalised to word characters; caller-supplied keywords may not be.
func escapeLike(tok string) string {
	tok = strings.ReplaceAll(tok, "%", "")
	return strings.ReplaceAll(tok, "_", "")
}
