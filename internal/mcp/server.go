package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/edittrail/edittrail/internal/config"
	"github.com/edittrail/edittrail/internal/embedder"
	"github.com/edittrail/edittrail/internal/ingest"
	"github.com/edittrail/edittrail/internal/reranker"
	"github.com/edittrail/edittrail/internal/searcher"
	"github.com/edittrail/edittrail/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "edittrail"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	processor *ingest.Processor
	searcher  *searcher.Searcher
	defaults  config.SearchConfig
}

// NewServer creates a new MCP server instance from loaded configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	dbPath := cfg.Database.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// A missing embedding provider degrades to lexical-only search; it is
	// not a startup failure.
	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		log.Printf("mcp: embedding provider unavailable, vector search disabled: %v", err)
		emb = nil
	}

	rr := reranker.New(reranker.Config{
		Enabled:  cfg.Rerank.Enabled,
		APIKey:   cfg.Rerank.APIKey,
		Endpoint: cfg.Rerank.Endpoint,
		Model:    cfg.Rerank.Model,
	})

	srch := searcher.New(store, emb,
		searcher.WithReranker(rr),
		searcher.WithFloors(cfg.Search.VectorFloor, cfg.Search.KeywordFloor),
	)

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		storage:   store,
		processor: ingest.New(store, emb),
		searcher:  srch,
		defaults:  cfg.Search,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchHistoryTool(), s.handleSearchHistory)
	s.mcp.AddTool(findSimilarTool(), s.handleFindSimilar)
	s.mcp.AddTool(fileTimelineTool(), s.handleFileTimeline)
	s.mcp.AddTool(symbolTimelineTool(), s.handleSymbolTimeline)
	s.mcp.AddTool(analyzePatternsTool(), s.handleAnalyzePatterns)
	s.mcp.AddTool(recordChangeTool(), s.handleRecordChange)
	s.mcp.AddTool(historyStatsTool(), s.handleHistoryStats)
}
