// Package cli implements the mnemo CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemo/internal/cluster"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/engine"
	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/notify"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/storage/postgres"
	"github.com/scrypster/mnemo/internal/storage/sqlite"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Persistent semantic memory for agent clusters",
	Long: "mnemo stores durable facts learned during agent conversations, recalls the " +
		"most relevant subset for a new request, arbitrates contradictions, and ages " +
		"out stale knowledge over time.",
	SilenceUsage: true,
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// openStore builds the configured storage backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.New(filepath.Join(cfg.Storage.DataPath, "mnemo.db"))
	default:
		return nil, fmt.Errorf("unsupported storage engine: %q", cfg.Storage.Engine)
	}
}

// buildEngine wires the full engine from configuration: store, embedding
// provider, judge, cluster registry, and the maintenance event writer.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedGen, err := llm.NewEmbeddingGenerator(llm.ProviderConfig{
		Provider:       cfg.LLM.EmbeddingProvider,
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	embedder := engine.NewEmbedder(embedGen, cfg.LLM.EmbeddingCache)

	textGen, err := llm.NewTextGenerator(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	judge := llm.NewJudge(textGen)

	clusters, err := cluster.Load(cfg.Cluster.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("cluster config: %w", err)
	}

	writer := notify.NewEventWriter(cfg.Storage.DataPath)
	return engine.New(store, embedder, judge, clusters, cfg, writer), nil
}
