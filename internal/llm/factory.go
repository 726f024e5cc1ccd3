package llm

import "fmt"

// ProviderConfig carries the provider selection and connection settings
// resolved from configuration.
type ProviderConfig struct {
	Provider       string // "ollama" or "openai"
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
}

// NewTextGenerator creates the TextGenerator for the configured provider.
func NewTextGenerator(cfg ProviderConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewEmbeddingGenerator creates the EmbeddingGenerator for the configured
// provider. Returns (nil, nil) when the provider is explicitly "none":
// callers treat a nil generator as "no semantic signal available".
func NewEmbeddingGenerator(cfg ProviderConfig) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbeddingClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.EmbeddingModel, BaseURL: cfg.BaseURL}), nil
	case "ollama", "":
		model := cfg.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.BaseURL, Model: model}), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
