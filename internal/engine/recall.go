package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/mnemo/internal/cluster"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// Hybrid ranking weights. They sum to 1 so a perfect match scores 1.0.
const (
	weightLexical    = 0.4
	weightSemantic   = 0.3
	weightRecency    = 0.2
	weightImportance = 0.1

	// recencyHalfScaleDays controls how fast the recency component falls
	// off: score = 1 / (1 + ageDays/30).
	recencyHalfScaleDays = 30.0
)

// semanticScore distinguishes "scored at 0" from "never scored". Both
// contribute nothing to the blended score, but keeping the distinction
// explicit makes the degraded (no embedding provider) path visible in the
// result rather than hidden behind a sentinel zero.
type semanticScore struct {
	Scored bool
	Value  float64
}

func (s semanticScore) weighted() float64 {
	if !s.Scored {
		return 0
	}
	return weightSemantic * s.Value
}

// RecalledEntry is one ranked recall result with its component scores.
type RecalledEntry struct {
	Entry *types.MemoryEntry `json:"entry"`

	Score   float64 `json:"score"`
	Lexical float64 `json:"lexical"`

	// Semantic is the similarity sub-score; SemanticScored reports whether
	// a vector comparison actually happened for this entry.
	Semantic       float64 `json:"semantic"`
	SemanticScored bool    `json:"semantic_scored"`

	// FromPeer is set on entries surfaced from another agent through
	// cluster augmentation.
	FromPeer bool `json:"from_peer,omitempty"`
}

// RecallEngine ranks stored memories against a free-text query by blending
// keyword overlap, embedding similarity, recency, and importance.
type RecallEngine struct {
	store    storage.Store
	embedder *Embedder
	clusters *cluster.Registry
	cfg      config.MemoryConfig

	// trackWG is waited on by Close so in-flight access bumps finish.
	trackWG sync.WaitGroup
}

// NewRecallEngine creates a recall engine. clusters may be nil to disable
// peer augmentation.
func NewRecallEngine(store storage.Store, embedder *Embedder, clusters *cluster.Registry, cfg config.MemoryConfig) *RecallEngine {
	return &RecallEngine{store: store, embedder: embedder, clusters: clusters, cfg: cfg}
}

// Recall returns up to limit active memories for agentID ranked against
// query. Candidate gathering runs lexical and semantic retrieval
// concurrently; a failed or unconfigured embedder silently narrows recall
// to keyword matching. Every returned entry gets its access count bumped
// asynchronously.
func (e *RecallEngine) Recall(ctx context.Context, agentID, query string, limit int) ([]RecalledEntry, error) {
	if agentID == "" {
		return nil, types.ErrMissingAgent
	}
	if limit <= 0 {
		limit = e.cfg.RecallLimit
	}

	tokens := ExtractTokens(query, e.cfg.MaxQueryTokens)

	// An empty token set short-circuits to the importance/recency ordering
	// of the store, whether or not an embedding provider is configured.
	if len(tokens) == 0 {
		entries, err := e.store.ListActive(ctx, agentID, limit)
		if err != nil {
			return nil, fmt.Errorf("recall: list active: %w", err)
		}
		results := make([]RecalledEntry, 0, len(entries))
		for _, entry := range entries {
			results = append(results, e.scoreEntry(entry, 0, semanticScore{}, false))
		}
		e.trackAccess(results)
		return results, nil
	}

	queryVec := e.embedder.Embed(ctx, query)

	var (
		wg       sync.WaitGroup
		lexical  []*types.MemoryEntry
		semantic []storage.ScoredEntry
		lexErr   error
		semErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		lexical, lexErr = e.store.KeywordCandidates(ctx, agentID, tokens, e.cfg.RecentImportantDays, e.cfg.LexicalPool)
	}()

	if queryVec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semantic, semErr = e.store.SemanticCandidates(ctx, agentID, queryVec, e.cfg.SemanticPool)
		}()
	}
	wg.Wait()

	if lexErr != nil {
		return nil, fmt.Errorf("recall: keyword candidates: %w", lexErr)
	}
	if semErr != nil {
		// Semantic retrieval is an enrichment, not a requirement.
		log.Printf("engine: semantic candidates failed, continuing lexical-only: %v", semErr)
		semantic = nil
	}

	type candidate struct {
		entry *types.MemoryEntry
		sem   semanticScore
	}
	merged := make(map[int64]candidate, len(lexical)+len(semantic))
	for _, entry := range lexical {
		merged[entry.ID] = candidate{entry: entry}
	}
	for _, cand := range semantic {
		sem := semanticScore{Scored: true, Value: cand.Similarity}
		merged[cand.Entry.ID] = candidate{entry: cand.Entry, sem: sem}
	}

	entries := make([]*types.MemoryEntry, 0, len(merged))
	for _, c := range merged {
		entries = append(entries, c.entry)
	}
	lexScores := normalizeOverlaps(entries, tokens)

	results := make([]RecalledEntry, 0, len(merged))
	for id, c := range merged {
		results = append(results, e.scoreEntry(c.entry, lexScores[id], c.sem, false))
	}
	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}

	results = e.augmentFromPeers(ctx, agentID, tokens, results)
	e.trackAccess(results)
	return results, nil
}

// normalizeOverlaps maps each entry to its raw token-overlap count divided
// by the maximum overlap observed across the set, so the best lexical match
// scores 1.0. Entries with no overlap score 0.
func normalizeOverlaps(entries []*types.MemoryEntry, tokens []string) map[int64]float64 {
	scores := make(map[int64]float64, len(entries))
	if len(tokens) == 0 {
		return scores
	}
	counts := make(map[int64]int, len(entries))
	best := 0
	for _, entry := range entries {
		n := overlapCount(entry.Keywords, tokens)
		counts[entry.ID] = n
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return scores
	}
	for id, n := range counts {
		scores[id] = float64(n) / float64(best)
	}
	return scores
}

// scoreEntry computes the blended relevance score for one entry. lexical is
// the already-normalized overlap sub-score in [0,1].
func (e *RecallEngine) scoreEntry(entry *types.MemoryEntry, lexical float64, sem semanticScore, fromPeer bool) RecalledEntry {
	recency := 1.0 / (1.0 + entry.AgeDays(time.Now())/recencyHalfScaleDays)

	score := weightLexical*lexical +
		sem.weighted() +
		weightRecency*recency +
		weightImportance*entry.Importance.Weight()

	return RecalledEntry{
		Entry:          entry,
		Score:          score,
		Lexical:        lexical,
		Semantic:       sem.Value,
		SemanticScored: sem.Scored,
		FromPeer:       fromPeer,
	}
}

// augmentFromPeers appends shared and broadcast entries from cluster peers.
// Peer entries never displace the agent's own results and peer lookup
// failures never fail the recall.
func (e *RecallEngine) augmentFromPeers(ctx context.Context, agentID string, tokens []string, results []RecalledEntry) []RecalledEntry {
	if e.clusters == nil || e.cfg.PeerLimit <= 0 {
		return results
	}
	peers := e.clusters.Peers(agentID)
	if len(peers) == 0 {
		return results
	}

	entries, err := e.store.PeerCandidates(ctx, peers, tokens, e.cfg.PeerLimit)
	if err != nil {
		log.Printf("engine: peer candidates failed for %s: %v", agentID, err)
		return results
	}

	seen := make(map[int64]struct{}, len(results))
	for _, r := range results {
		seen[r.Entry.ID] = struct{}{}
	}
	lexScores := normalizeOverlaps(entries, tokens)
	peerResults := make([]RecalledEntry, 0, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		peerResults = append(peerResults, e.scoreEntry(entry, lexScores[entry.ID], semanticScore{}, true))
	}
	sortByScore(peerResults)
	return append(results, peerResults...)
}

// trackAccess bumps access counters for the returned entries without
// blocking the caller. Failures are logged and otherwise ignored.
func (e *RecallEngine) trackAccess(results []RecalledEntry) {
	if len(results) == 0 {
		return
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Entry.ID)
	}

	e.trackWG.Add(1)
	go func() {
		defer e.trackWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.store.IncrementAccess(ctx, ids); err != nil {
			log.Printf("engine: access tracking failed for %d entries: %v", len(ids), err)
		}
	}()
}

// Flush waits for in-flight access tracking to complete.
func (e *RecallEngine) Flush() {
	e.trackWG.Wait()
}

func sortByScore(results []RecalledEntry) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})
}
