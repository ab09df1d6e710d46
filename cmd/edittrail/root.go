package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edittrail/edittrail/internal/config"
	"github.com/edittrail/edittrail/internal/embedder"
	"github.com/edittrail/edittrail/internal/ingest"
	"github.com/edittrail/edittrail/internal/reranker"
	"github.com/edittrail/edittrail/internal/searcher"
	"github.com/edittrail/edittrail/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig string
	flagDB     string
)

var rootCmd = &cobra.Command{
	Use:   "edittrail",
	Short: "Searchable history of your file edits",
	Long: `edittrail records file edits and makes them searchable with hybrid
semantic and keyword retrieval. Run 'edittrail mcp' to expose the history
over the Model Context Protocol.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	// Stdout is reserved for MCP protocol traffic when serving.
	log.SetOutput(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./edittrail.yaml, ~/.config/edittrail/edittrail.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (overrides config)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edittrail %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}
	return cfg, nil
}

// engine bundles the components the CLI commands share.
type engine struct {
	cfg       *config.Config
	store     storage.Storage
	searcher  *searcher.Searcher
	processor *ingest.Processor
}

func (e *engine) Close() {
	_ = e.store.Close()
}

func openEngine() (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		log.Printf("embedding provider unavailable, vector search disabled: %v", err)
		emb = nil
	}

	rr := reranker.New(reranker.Config{
		Enabled:  cfg.Rerank.Enabled,
		APIKey:   cfg.Rerank.APIKey,
		Endpoint: cfg.Rerank.Endpoint,
		Model:    cfg.Rerank.Model,
	})

	return &engine{
		cfg:   cfg,
		store: store,
		searcher: searcher.New(store, emb,
			searcher.WithReranker(rr),
			searcher.WithFloors(cfg.Search.VectorFloor, cfg.Search.KeywordFloor),
		),
		processor: ingest.New(store, emb),
	}, nil
}
