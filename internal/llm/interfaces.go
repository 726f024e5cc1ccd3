// Package llm provides the text-generation and embedding capabilities the
// memory subsystem consumes: Ollama and OpenAI HTTP clients behind narrow
// interfaces, circuit-breaker protection, and the conflict arbitration
// judge.
package llm

import "context"

// TextGenerator is the interface for single-prompt LLM completion.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
