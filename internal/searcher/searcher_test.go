package searcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edittrail/edittrail/internal/embedder"
	"github.com/edittrail/edittrail/internal/storage"
	"github.com/edittrail/edittrail/pkg/types"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	generateFunc func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &embedder.Embedding{
		Vector:    []float32{1, 0, 0},
		Dimension: 3,
		Model:     "mock-model",
		Provider:  "mock",
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = &embedder.Embedding{
			Vector:    []float32{1, 0, 0},
			Dimension: 3,
			Model:     "mock-model",
			Provider:  "mock",
		}
	}
	return &embedder.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   "mock",
		Model:      "mock-model",
	}, nil
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func setupStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedChange inserts a change record with an attached embedding vector.
func seedChange(t *testing.T, store storage.Storage, id, filePath, summary string, symbols []string, vector []float32) {
	t.Helper()
	ctx := context.Background()
	rec := &types.ChangeRecord{
		ID:          id,
		Timestamp:   time.Now().UnixMilli(),
		WorkspaceID: "ws-test",
		FilePath:    filePath,
		Kind:        types.EventModify,
		Summary:     summary,
		Symbols:     symbols,
		Diff:        fmt.Sprintf("+func touched() {} // %s", summary),
	}
	require.NoError(t, store.InsertChange(ctx, rec))

	if vector != nil {
		emb := &storage.Embedding{
			ID:        "emb-" + id,
			ChangeID:  id,
			Vector:    storage.SerializeVector(vector),
			Dimension: len(vector),
			Provider:  "mock",
			Model:     "mock-model",
		}
		require.NoError(t, store.UpsertEmbedding(ctx, emb))
		require.NoError(t, store.AttachEmbedding(ctx, id, emb.ID))
	}
}

func TestSearchHybrid(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-auth", "internal/auth/login.go", "add login handler", []string{"HandleLogin"}, []float32{1, 0, 0})
	seedChange(t, store, "chg-parse", "internal/parser/lex.go", "rewrite tokenizer", []string{"NextToken"}, []float32{0, 1, 0})

	s := New(store, &mockEmbedder{})
	results, err := s.Search(context.Background(), "login handler", nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "chg-auth", results[0].Record.ID)
	assert.Greater(t, results[0].Score, 0.0)
	if len(results) > 1 {
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	}
}

// seedChangeAt inserts a change record with an explicit timestamp and no
// embedding.
func seedChangeAt(t *testing.T, store storage.Storage, id, filePath, summary string, ts time.Time) {
	t.Helper()
	rec := &types.ChangeRecord{
		ID:          id,
		Timestamp:   ts.UnixMilli(),
		WorkspaceID: "ws-test",
		FilePath:    filePath,
		Kind:        types.EventModify,
		Summary:     summary,
	}
	require.NoError(t, store.InsertChange(context.Background(), rec))
}

func TestSearchAppliesEnrichedTimeWindow(t *testing.T) {
	store := setupStore(t)
	yesterday := fixedNow.AddDate(0, 0, -1)
	seedChangeAt(t, store, "chg-recent", "src/parser.ts", "fixed bug in tokenizer", yesterday)
	seedChangeAt(t, store, "chg-old", "src/parser.ts", "fixed another parser bug", fixedNow.AddDate(0, 0, -30))
	seedChangeAt(t, store, "chg-wrong-file", "src/render.ts", "parser bug fixed here too", yesterday)

	// Lexical-only: all three records match the FTS tokens, so the enriched
	// window and file pattern are the only things keeping the old and
	// wrong-file records out.
	s := New(store, nil, WithClock(fixedClock))
	results, err := s.Search(context.Background(), "fixed bug in parser.ts yesterday", nil, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "chg-recent", results[0].Record.ID)
}

func TestSearchLexicalLegHonorsExplicitFilters(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-go", "internal/auth/login.go", "add login handler", nil, nil)
	seedChange(t, store, "chg-md", "docs/login.md", "document login flow", nil, nil)

	s := New(store, nil)
	filters := &types.Filters{FilePatterns: []string{"**/*.go"}}
	results, err := s.Search(context.Background(), "login", filters, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "chg-go", results[0].Record.ID)

	filters = &types.Filters{EventKinds: []types.EventKind{types.EventDelete}}
	results, err = s.Search(context.Background(), "login", filters, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := New(setupStore(t), &mockEmbedder{})
	_, err := s.Search(context.Background(), "   ", nil, nil)
	assert.Error(t, err)
}

func TestSearchVectorLegDegrades(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "add login handler", nil, nil)

	// Embedding provider is down; the lexical leg must still answer.
	emb := &mockEmbedder{
		generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
			return nil, errors.New("provider down")
		},
	}
	s := New(store, emb)
	results, err := s.Search(context.Background(), "login", nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chg-1", results[0].Record.ID)
}

func TestSearchWithoutEmbedder(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "add login handler", nil, nil)

	s := New(store, nil)
	results, err := s.Search(context.Background(), "login", nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchNoMatches(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "add login handler", nil, nil)

	s := New(store, nil)
	results, err := s.Search(context.Background(), "zzzqqqxxx", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchIdempotent(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-a", "internal/auth/login.go", "add login handler", nil, []float32{1, 0, 0})
	seedChange(t, store, "chg-b", "internal/auth/session.go", "login session refresh", nil, []float32{0.9, 0.1, 0})

	s := New(store, &mockEmbedder{})
	first, err := s.Search(context.Background(), "login", nil, nil)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), "login", nil, nil)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Record.ID, second[i].Record.ID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestSearchResultLimit(t *testing.T) {
	store := setupStore(t)
	for i := 0; i < 5; i++ {
		seedChange(t, store, fmt.Sprintf("chg-%d", i), fmt.Sprintf("internal/auth/f%d.go", i), "login tweak", nil, nil)
	}

	s := New(store, nil)
	params := types.HybridParams{ResultLimit: 2}
	results, err := s.Search(context.Background(), "login", nil, &params)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchHighlights(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "add login handler", []string{"HandleLogin"}, nil)

	s := New(store, nil)
	results, err := s.Search(context.Background(), "login", nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].Highlights)

	fields := make(map[string]bool)
	for _, h := range results[0].Highlights {
		fields[h.Field] = true
		assert.Contains(t, h.Terms, "login")
	}
	assert.True(t, fields["filePath"])
	assert.True(t, fields["symbols"])
}

func TestSearchEvents(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "add login handler", nil, nil)

	notifier := NewChannelNotifier(4)
	s := New(store, nil, WithNotifier(notifier))
	_, err := s.Search(context.Background(), "login", nil, nil)
	require.NoError(t, err)

	select {
	case event := <-notifier.Events():
		assert.Equal(t, "login", event.Query)
		require.Len(t, event.Results, 1)
		assert.Equal(t, "chg-1", event.Results[0].Record.ID)
	default:
		t.Fatal("expected a completion event")
	}
}

func TestFindSimilar(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-a", "internal/auth/login.go", "add login handler", nil, []float32{1, 0, 0})
	seedChange(t, store, "chg-b", "internal/auth/session.go", "session refresh", nil, []float32{0.95, 0.05, 0})
	seedChange(t, store, "chg-c", "internal/parser/lex.go", "tokenizer", nil, []float32{0, 1, 0})

	s := New(store, &mockEmbedder{})
	results, err := s.FindSimilar(context.Background(), "chg-a", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The source record is excluded; the nearest neighbor leads.
	for _, r := range results {
		assert.NotEqual(t, "chg-a", r.Record.ID)
	}
	assert.Equal(t, "chg-b", results[0].Record.ID)
}

func TestFindSimilarChangeNotFound(t *testing.T) {
	s := New(setupStore(t), &mockEmbedder{})
	_, err := s.FindSimilar(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, types.ErrChangeNotFound)
}

func TestFindSimilarNoEmbedding(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-bare", "internal/auth/login.go", "add login handler", nil, nil)

	s := New(store, &mockEmbedder{})
	_, err := s.FindSimilar(context.Background(), "chg-bare", 5)
	assert.ErrorIs(t, err, types.ErrNoEmbedding)
}

func TestTimelines(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "first pass", []string{"HandleLogin"}, nil)
	seedChange(t, store, "chg-2", "internal/auth/login.go", "second pass", []string{"HandleLogin"}, nil)
	seedChange(t, store, "chg-3", "internal/parser/lex.go", "tokenizer", []string{"NextToken"}, nil)

	s := New(store, nil)
	files, err := s.FileTimeline(context.Background(), "ws-test", "internal/auth/login.go", 0)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	symbols, err := s.SymbolTimeline(context.Background(), "ws-test", "HandleLogin", 0)
	require.NoError(t, err)
	assert.Len(t, symbols, 2)
}

func TestAnalyzePatterns(t *testing.T) {
	store := setupStore(t)
	seedChange(t, store, "chg-1", "internal/auth/login.go", "first", []string{"HandleLogin"}, nil)
	seedChange(t, store, "chg-2", "internal/auth/login.go", "second", []string{"HandleLogin"}, nil)
	seedChange(t, store, "chg-3", "internal/parser/lex.go", "tokenizer", []string{"NextToken"}, nil)

	s := New(store, nil)
	report, err := s.AnalyzePatterns(context.Background(), "ws-test", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalChanges)
	require.NotEmpty(t, report.FrequentFiles)
	assert.Equal(t, "internal/auth/login.go", report.FrequentFiles[0].FilePath)
	assert.Equal(t, 2, report.FrequentFiles[0].Count)
	require.NotEmpty(t, report.FrequentSymbols)
	assert.Equal(t, "HandleLogin", report.FrequentSymbols[0].Symbol)
	assert.Equal(t, 3, report.ChangeTypes[types.EventModify])
}
