// Package config provides configuration management for mnemo. Settings are
// loaded from environment variables with the MNEMO_ prefix, with sensible
// defaults for every option.
//
// The similarity thresholds and decay windows are product tuning values,
// not invariants; they are exposed here so deployments can adjust them
// without code changes.
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration settings for the mnemo subsystem.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Memory   MemoryConfig
	Decay    DecayConfig
	Security SecurityConfig
	Cluster  ClusterConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7171)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine      string // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string // Path to data directory for sqlite + event spool (default: ./data)
	PostgresDSN string // PostgreSQL connection string (postgres engine only)
}

// LLMConfig contains provider configuration for the judge and embeddings.
type LLMConfig struct {
	Provider          string // LLM provider: ollama, openai (default: ollama)
	BaseURL           string // Provider base URL (default: http://localhost:11434 for ollama)
	APIKey            string // API key (openai only)
	Model             string // Judge model name
	EmbeddingProvider string // Embedding provider: ollama, openai, none (default: Provider)
	EmbeddingModel    string // Embedding model name (default: nomic-embed-text)
	EmbeddingCache    int    // Query-embedding LRU cache size (default: 512)
}

// MemoryConfig contains the recall and conflict-resolution tuning values.
type MemoryConfig struct {
	DuplicateThreshold     float64 // similarity above which a new fact is a duplicate (default: 0.90)
	ArbitrationThreshold   float64 // similarity above which the judge is consulted (default: 0.70)
	ConsolidationThreshold float64 // similarity above which consolidation merges a pair (default: 0.92)
	RecallLimit            int     // default recall result count (default: 8)
	RecentImportantDays    int     // window for the high/critical lexical shortcut (default: 30)
	LexicalPool            int     // lexical candidate cap (default: 30)
	SemanticPool           int     // semantic candidate cap (default: 20)
	PeerLimit              int     // cross-agent augmentation cap (default: 5)
	MaxQueryTokens         int     // query token cap (default: 30)
}

// DecayConfig contains the decay pass windows, in days.
type DecayConfig struct {
	StaleZeroAccessDays int // archive: never accessed and older than this (default: 90)
	StaleLowAccessDays  int // archive: under LowAccessThreshold accesses and older (default: 180)
	LowAccessThreshold  int // archive: access count threshold (default: 3)
	HighAgeDays         int // high->medium: minimum age (default: 60)
	HighIdleDays        int // high->medium: minimum idle time (default: 30)
	MediumAgeDays       int // medium->low: minimum age (default: 120)
	MediumIdleDays      int // medium->low: minimum idle time (default: 60)
	StaleAfterDays      int // health report staleness window (default: 90)
}

// SecurityConfig contains authentication settings for the HTTP API.
type SecurityConfig struct {
	SecurityMode string // development or production (default: development)
	APIToken     string // Bearer token required in production mode
}

// ClusterConfig locates the static cluster membership file.
type ClusterConfig struct {
	ConfigPath string // Path to the cluster YAML file (default: none)
}

// Load builds a Config from environment variables and defaults.
func Load() *Config {
	provider := getEnv("MNEMO_LLM_PROVIDER", "ollama")

	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("MNEMO_PORT", 7171),
			Host: getEnv("MNEMO_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Engine:      getEnv("MNEMO_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("MNEMO_DATA_PATH", "./data"),
			PostgresDSN: getEnv("MNEMO_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			Provider:          provider,
			BaseURL:           getEnv("MNEMO_LLM_URL", ""),
			APIKey:            getEnv("MNEMO_LLM_API_KEY", ""),
			Model:             getEnv("MNEMO_LLM_MODEL", ""),
			EmbeddingProvider: getEnv("MNEMO_EMBEDDING_PROVIDER", provider),
			EmbeddingModel:    getEnv("MNEMO_EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingCache:    getEnvInt("MNEMO_EMBEDDING_CACHE", 512),
		},
		Memory: MemoryConfig{
			DuplicateThreshold:     getEnvFloat("MNEMO_DUPLICATE_THRESHOLD", 0.90),
			ArbitrationThreshold:   getEnvFloat("MNEMO_ARBITRATION_THRESHOLD", 0.70),
			ConsolidationThreshold: getEnvFloat("MNEMO_CONSOLIDATION_THRESHOLD", 0.92),
			RecallLimit:            getEnvInt("MNEMO_RECALL_LIMIT", 8),
			RecentImportantDays:    getEnvInt("MNEMO_RECENT_IMPORTANT_DAYS", 30),
			LexicalPool:            getEnvInt("MNEMO_LEXICAL_POOL", 30),
			SemanticPool:           getEnvInt("MNEMO_SEMANTIC_POOL", 20),
			PeerLimit:              getEnvInt("MNEMO_PEER_LIMIT", 5),
			MaxQueryTokens:         getEnvInt("MNEMO_MAX_QUERY_TOKENS", 30),
		},
		Decay: DecayConfig{
			StaleZeroAccessDays: getEnvInt("MNEMO_STALE_ZERO_ACCESS_DAYS", 90),
			StaleLowAccessDays:  getEnvInt("MNEMO_STALE_LOW_ACCESS_DAYS", 180),
			LowAccessThreshold:  getEnvInt("MNEMO_LOW_ACCESS_THRESHOLD", 3),
			HighAgeDays:         getEnvInt("MNEMO_HIGH_AGE_DAYS", 60),
			HighIdleDays:        getEnvInt("MNEMO_HIGH_IDLE_DAYS", 30),
			MediumAgeDays:       getEnvInt("MNEMO_MEDIUM_AGE_DAYS", 120),
			MediumIdleDays:      getEnvInt("MNEMO_MEDIUM_IDLE_DAYS", 60),
			StaleAfterDays:      getEnvInt("MNEMO_STALE_AFTER_DAYS", 90),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("MNEMO_SECURITY_MODE", "development"),
			APIToken:     getEnv("MNEMO_API_TOKEN", ""),
		},
		Cluster: ClusterConfig{
			ConfigPath: getEnv("MNEMO_CLUSTER_CONFIG", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value when unset or unparsable.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value when unset or unparsable.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
