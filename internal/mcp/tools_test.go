package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edittrail/edittrail/internal/config"
	"github.com/edittrail/edittrail/internal/ingest"
	"github.com/edittrail/edittrail/internal/searcher"
	"github.com/edittrail/edittrail/internal/storage"
	"github.com/edittrail/edittrail/pkg/types"
)

// newTestServer builds a Server over an in-memory store with no embedding
// provider, so only the lexical leg answers queries.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &Server{
		storage:   store,
		processor: ingest.New(store, nil),
		searcher:  searcher.New(store, nil),
		defaults: config.SearchConfig{
			VectorWeight:  types.DefaultVectorWeight,
			KeywordWeight: types.DefaultKeywordWeight,
			RerankTopK:    types.DefaultRerankTopK,
			ResultLimit:   types.DefaultResultLimit,
		},
	}
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func seedChange(t *testing.T, s *Server, id, filePath, summary string) {
	t.Helper()
	rec := &types.ChangeRecord{
		ID:          id,
		Timestamp:   time.Now().UnixMilli(),
		WorkspaceID: "ws-test",
		FilePath:    filePath,
		Kind:        types.EventModify,
		Summary:     summary,
	}
	require.NoError(t, s.processor.RecordChange(context.Background(), rec))
}

func TestHandleRecordChangeAndSearch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleRecordChange(ctx, toolRequest("record_change", map[string]interface{}{
		"workspace_id": "ws-test",
		"file_path":    "internal/auth/login.go",
		"kind":         "modify",
		"summary":      "add login handler",
		"symbols":      []interface{}{"HandleLogin"},
	}))
	require.NoError(t, err)

	recorded := resultText(t, result)
	assert.Equal(t, true, recorded["recorded"])
	assert.NotEmpty(t, recorded["change_id"])

	result, err = s.handleSearchHistory(ctx, toolRequest("search_history", map[string]interface{}{
		"query": "login handler",
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, float64(1), payload["count"])
	results := payload["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.Equal(t, "internal/auth/login.go", first["file_path"])
	assert.NotNil(t, first["score"])
}

func TestHandleSearchHistoryEmptyQuery(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchHistory(context.Background(), toolRequest("search_history", map[string]interface{}{
		"query": "",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
}

func TestHandleSearchHistoryLimitBounds(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchHistory(context.Background(), toolRequest("search_history", map[string]interface{}{
		"query": "anything",
		"limit": float64(500),
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleFindSimilarNotFound(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleFindSimilar(context.Background(), toolRequest("find_similar", map[string]interface{}{
		"change_id": "does-not-exist",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeChangeNotFound, mcpErr.Code)
}

func TestHandleFindSimilarNoEmbedding(t *testing.T) {
	s := newTestServer(t)
	seedChange(t, s, "chg-1", "a.go", "no vector stored")

	_, err := s.handleFindSimilar(context.Background(), toolRequest("find_similar", map[string]interface{}{
		"change_id": "chg-1",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeNoEmbedding, mcpErr.Code)
}

func TestHandleFileTimeline(t *testing.T) {
	s := newTestServer(t)
	seedChange(t, s, "chg-1", "pkg/api/server.go", "first")
	seedChange(t, s, "chg-2", "pkg/api/server.go", "second")
	seedChange(t, s, "chg-3", "README.md", "docs")

	result, err := s.handleFileTimeline(context.Background(), toolRequest("file_timeline", map[string]interface{}{
		"file_path": "pkg/api/server.go",
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, float64(2), payload["count"])
}

func TestHandleTimelineLimitBounds(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleFileTimeline(context.Background(), toolRequest("file_timeline", map[string]interface{}{
		"file_path": "a.go",
		"limit":     float64(500),
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleSymbolTimeline(context.Background(), toolRequest("symbol_timeline", map[string]interface{}{
		"symbol": "Serve",
		"limit":  float64(0),
	}))
	require.Error(t, err)
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleFileTimelineMissingPath(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleFileTimeline(context.Background(), toolRequest("file_timeline", map[string]interface{}{}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleAnalyzePatterns(t *testing.T) {
	s := newTestServer(t)
	seedChange(t, s, "chg-1", "a.go", "x")
	seedChange(t, s, "chg-2", "a.go", "y")
	seedChange(t, s, "chg-3", "b.go", "z")

	result, err := s.handleAnalyzePatterns(context.Background(), toolRequest("analyze_patterns", map[string]interface{}{
		"workspace_id": "ws-test",
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, float64(3), payload["total_changes"])
	files := payload["frequent_files"].([]interface{})
	top := files[0].(map[string]interface{})
	assert.Equal(t, "a.go", top["file_path"])
	assert.Equal(t, float64(2), top["count"])
}

func TestHandleHistoryStats(t *testing.T) {
	s := newTestServer(t)
	seedChange(t, s, "chg-1", "a.go", "x")

	result, err := s.handleHistoryStats(context.Background(), toolRequest("history_stats", nil))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, float64(1), payload["total_changes"])
	assert.Equal(t, float64(0), payload["embedded_changes"])
}

func TestHandleRecordChangeInvalidKind(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleRecordChange(context.Background(), toolRequest("record_change", map[string]interface{}{
		"workspace_id": "ws-test",
		"file_path":    "a.go",
		"kind":         "obliterate",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		raw     interface{}
		want    *types.Filters
		wantErr bool
	}{
		{
			name: "nil passes through",
			raw:  nil,
			want: nil,
		},
		{
			name: "full object",
			raw: map[string]interface{}{
				"workspace_id":  "ws-1",
				"file_patterns": []interface{}{"**/*.go"},
				"event_kinds":   []interface{}{"modify", "delete"},
				"time_range":    map[string]interface{}{"start": float64(100), "end": float64(200)},
			},
			want: &types.Filters{
				WorkspaceID:  "ws-1",
				FilePatterns: []string{"**/*.go"},
				EventKinds:   []types.EventKind{types.EventModify, types.EventDelete},
				TimeRange:    &types.TimeRange{Start: 100, End: 200},
			},
		},
		{
			name:    "not an object",
			raw:     "workspace",
			wantErr: true,
		},
		{
			name: "unknown event kind",
			raw: map[string]interface{}{
				"event_kinds": []interface{}{"explode"},
			},
			wantErr: true,
		},
		{
			name: "inverted time range",
			raw: map[string]interface{}{
				"time_range": map[string]interface{}{"start": float64(200), "end": float64(100)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeRangeArgOpenEnd(t *testing.T) {
	tr, err := parseTimeRangeArg(map[string]interface{}{"start": float64(100)})
	require.NoError(t, err)
	assert.Equal(t, int64(100), tr.Start)
	assert.Equal(t, int64(0), tr.End)
}

func TestStringSlice(t *testing.T) {
	assert.Nil(t, stringSlice(nil))
	assert.Nil(t, stringSlice("not a slice"))
	assert.Nil(t, stringSlice([]interface{}{1, true}))
	assert.Equal(t, []string{"a", "b"}, stringSlice([]interface{}{"a", 1, "b"}))
}

func TestGetDefaults(t *testing.T) {
	args := map[string]interface{}{
		"n": float64(7),
		"s": "hello",
	}
	assert.Equal(t, 7, getIntDefault(args, "n", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
	assert.Equal(t, 1, getIntDefault(nil, "n", 1))
	assert.Equal(t, "hello", getStringDefault(args, "s", "d"))
	assert.Equal(t, "d", getStringDefault(args, "missing", "d"))
	assert.Equal(t, "d", getStringDefault(nil, "s", "d"))
}
