package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/edittrail/edittrail/pkg/types"
)

// Config holds all settings for the history engine. Every key can be set via
// a yaml file or an EDITTRAIL_* environment variable; the file is optional.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Rerank    RerankConfig    `mapstructure:"rerank"`
	Search    SearchConfig    `mapstructure:"search"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// DatabaseConfig locates the SQLite history store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // jina, openai, ollama; empty = auto-detect
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	CacheSize int    `mapstructure:"cache_size"`
}

// RerankConfig configures the optional cross-encoder stage.
type RerankConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// SearchConfig carries the default retrieval parameters. Per-query values
// override these.
type SearchConfig struct {
	VectorWeight  float64 `mapstructure:"vector_weight"`
	KeywordWeight float64 `mapstructure:"keyword_weight"`
	RerankTopK    int     `mapstructure:"rerank_top_k"`
	ResultLimit   int     `mapstructure:"result_limit"`
	VectorFloor   float64 `mapstructure:"vector_floor"`
	KeywordFloor  float64 `mapstructure:"keyword_floor"`
}

// RetentionConfig bounds how long history is kept. Zero means keep forever.
type RetentionConfig struct {
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// HybridParams converts the configured search defaults to query parameters.
func (s SearchConfig) HybridParams() types.HybridParams {
	return types.HybridParams{
		VectorWeight:  s.VectorWeight,
		KeywordWeight: s.KeywordWeight,
		RerankTopK:    s.RerankTopK,
		ResultLimit:   s.ResultLimit,
	}.Normalized()
}

// Validate checks values a typo would most plausibly break.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be >= 0")
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", "jina", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}

// Load reads configuration from the given file path, or from the default
// locations when path is empty. A missing config file is not an error; the
// defaults plus environment variables form a complete configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("edittrail")
	v.SetConfigType("yaml")

	v.SetDefault("database.path", defaultDatabasePath())
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.cache_size", 1000)
	v.SetDefault("search.vector_weight", types.DefaultVectorWeight)
	v.SetDefault("search.keyword_weight", types.DefaultKeywordWeight)
	v.SetDefault("search.rerank_top_k", types.DefaultRerankTopK)
	v.SetDefault("search.result_limit", types.DefaultResultLimit)
	v.SetDefault("search.vector_floor", 0.3)
	v.SetDefault("search.keyword_floor", 0.1)
	v.SetDefault("retention.max_age_days", 0)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "edittrail"))
		}
	}

	v.SetEnvPrefix("EDITTRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "edittrail.db"
	}
	return filepath.Join(home, ".local", "share", "edittrail", "history.db")
}
