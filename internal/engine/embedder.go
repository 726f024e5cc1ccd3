package engine

import (
	"context"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/mnemo/internal/llm"
)

// Embedder wraps an embedding generator and absorbs its failures: a
// provider error or an unconfigured provider yields a nil vector, so every
// caller degrades to keyword-only behavior instead of surfacing an error.
type Embedder struct {
	generator llm.EmbeddingGenerator
	cache     *lru.Cache[string, []float32]
}

// NewEmbedder creates an embedder around gen. gen may be nil, in which case
// Embed always returns nil. cacheSize bounds the query-text cache; values
// below 2 disable caching.
func NewEmbedder(gen llm.EmbeddingGenerator, cacheSize int) *Embedder {
	e := &Embedder{generator: gen}
	if cacheSize >= 2 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err == nil {
			e.cache = cache
		}
	}
	return e
}

// Configured reports whether an embedding provider is wired in.
func (e *Embedder) Configured() bool {
	return e != nil && e.generator != nil
}

// Embed returns the embedding for text, or nil when no provider is
// configured or the provider fails. Results are cached by exact text.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if !e.Configured() || text == "" {
		return nil
	}

	if e.cache != nil {
		if vec, ok := e.cache.Get(text); ok {
			return vec
		}
	}

	vec, err := e.generator.Embed(ctx, text)
	if err != nil {
		log.Printf("engine: embedding failed (model %s): %v", e.generator.GetModel(), err)
		return nil
	}
	if len(vec) == 0 {
		return nil
	}

	if e.cache != nil {
		e.cache.Add(text, vec)
	}
	return vec
}
