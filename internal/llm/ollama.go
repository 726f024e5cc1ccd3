package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434).
	BaseURL string

	// Model is the model name used for completions and embeddings.
	Model string

	// Timeout is the per-request timeout (default: 15s).
	Timeout time.Duration
}

// OllamaClient handles communication with the Ollama API for local LLM
// inference and embeddings. Every HTTP call goes through the circuit
// breaker.
type OllamaClient struct {
	baseURL        string
	client         *http.Client
	circuitBreaker *CircuitBreaker
	model          string
	timeout        time.Duration
}

// NewOllamaClient creates an Ollama client, applying defaults for any
// missing configuration values.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "qwen2.5:7b"
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &OllamaClient{
		baseURL:        config.BaseURL,
		client:         &http.Client{Timeout: config.Timeout},
		circuitBreaker: NewCircuitBreaker(),
		model:          config.Model,
		timeout:        config.Timeout,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse carries a 2D array; single-input requests use the first row.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Complete sends a completion request to Ollama and returns the response
// text, wrapped with circuit breaker protection.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("ollama circuit breaker open: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *OllamaClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama generate returned %d: %s", resp.StatusCode, string(data))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return genResp.Response, nil
}

// Embed generates a vector embedding for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("ollama circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

func (c *OllamaClient) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode, string(data))
	}

	var embResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embResp.Embeddings) == 0 || len(embResp.Embeddings[0]) == 0 {
		return nil, errors.New("ollama embed returned no embeddings")
	}
	return embResp.Embeddings[0], nil
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.model
}
