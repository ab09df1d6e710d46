package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/edittrail/edittrail/internal/ingest"
	"github.com/edittrail/edittrail/internal/searcher"
	"github.com/edittrail/edittrail/internal/storage"
	"github.com/edittrail/edittrail/pkg/types"
)

// SearchTestSuite exercises the full pipeline: record -> embed -> search.
type SearchTestSuite struct {
	suite.Suite
	store     storage.Storage
	processor *ingest.Processor
	searcher  *searcher.Searcher
	ctx       context.Context
}

// SetupTest creates a fresh in-memory stack for each test
func (s *SearchTestSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.store = store

	emb := NewMockEmbedder(64)
	s.processor = ingest.New(store, emb)
	s.searcher = searcher.New(store, emb)
}

// TearDownTest closes the storage
func (s *SearchTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// record persists one change and returns its assigned ID
func (s *SearchTestSuite) record(filePath, summary string, symbols ...string) string {
	rec := &types.ChangeRecord{
		Timestamp:   time.Now().UnixMilli(),
		WorkspaceID: "ws-main",
		FilePath:    filePath,
		Kind:        types.EventModify,
		Summary:     summary,
		Symbols:     symbols,
	}
	s.Require().NoError(s.processor.RecordChange(s.ctx, rec))
	return rec.ID
}

// embedAll runs the backfill and asserts nothing was left behind
func (s *SearchTestSuite) embedAll() {
	stats, err := s.processor.EmbedPending(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(0, stats.Failed)

	pending, err := s.store.ListUnembedded(s.ctx, 100)
	s.Require().NoError(err)
	s.Empty(pending)
}

// TestRecordEmbedSearch tests the complete happy path
func (s *SearchTestSuite) TestRecordEmbedSearch() {
	s.record("internal/auth/login.go", "add oauth login handler", "HandleLogin")
	s.record("internal/auth/session.go", "refresh session token on oauth callback", "RefreshSession")
	s.record("internal/parser/lex.go", "rewrite tokenizer for unicode input", "NextToken")
	s.embedAll()

	results, err := s.searcher.Search(s.ctx, "oauth login", nil, nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(results)

	s.Equal("internal/auth/login.go", results[0].Record.FilePath)
	for i := 1; i < len(results); i++ {
		s.LessOrEqual(results[i].Score, results[i-1].Score, "results must be sorted by score")
	}
}

// TestSearchLexicalOnly verifies degradation when no embeddings exist
func (s *SearchTestSuite) TestSearchLexicalOnly() {
	s.record("pkg/api/server.go", "wire graceful shutdown", "Serve")
	// No embedAll: vector leg finds nothing, lexical still answers.

	results, err := s.searcher.Search(s.ctx, "graceful shutdown", nil, nil)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("pkg/api/server.go", results[0].Record.FilePath)
}

// TestSearchWithWorkspaceFilter verifies filter scoping
func (s *SearchTestSuite) TestSearchWithWorkspaceFilter() {
	s.record("a.go", "shared helper cleanup")
	other := &types.ChangeRecord{
		Timestamp:   time.Now().UnixMilli(),
		WorkspaceID: "ws-other",
		FilePath:    "b.go",
		Kind:        types.EventModify,
		Summary:     "shared helper cleanup",
	}
	s.Require().NoError(s.processor.RecordChange(s.ctx, other))
	s.embedAll()

	filters := &types.Filters{WorkspaceID: "ws-other"}
	results, err := s.searcher.Search(s.ctx, "helper cleanup", filters, nil)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("b.go", results[0].Record.FilePath)
}

// TestFindSimilar verifies nearest-neighbor lookup excludes the anchor
func (s *SearchTestSuite) TestFindSimilar() {
	anchor := s.record("internal/auth/login.go", "add oauth login handler", "HandleLogin")
	close1 := s.record("internal/auth/oauth.go", "oauth login token exchange", "ExchangeToken")
	s.record("internal/render/svg.go", "draw chart axes", "DrawAxes")
	s.embedAll()

	results, err := s.searcher.FindSimilar(s.ctx, anchor, 2)
	s.Require().NoError(err)
	s.Require().NotEmpty(results)

	s.Equal(close1, results[0].Record.ID)
	for _, r := range results {
		s.NotEqual(anchor, r.Record.ID, "anchor must not appear in its own neighbors")
	}
}

// TestFileTimeline verifies newest-first ordering for one file
func (s *SearchTestSuite) TestFileTimeline() {
	base := time.Now().UnixMilli()
	for i := 0; i < 3; i++ {
		rec := &types.ChangeRecord{
			Timestamp:   base + int64(i*1000),
			WorkspaceID: "ws-main",
			FilePath:    "internal/auth/login.go",
			Kind:        types.EventModify,
			Summary:     fmt.Sprintf("revision %d", i),
		}
		s.Require().NoError(s.processor.RecordChange(s.ctx, rec))
	}

	timeline, err := s.searcher.FileTimeline(s.ctx, "ws-main", "internal/auth/login.go", 10)
	s.Require().NoError(err)
	s.Require().Len(timeline, 3)
	s.Equal("revision 2", timeline[0].Summary)
	s.Equal("revision 0", timeline[2].Summary)
}

// TestAnalyzePatterns verifies aggregation over recorded history
func (s *SearchTestSuite) TestAnalyzePatterns() {
	s.record("hot.go", "a", "Hot")
	s.record("hot.go", "b", "Hot")
	s.record("cold.go", "c", "Cold")

	report, err := s.searcher.AnalyzePatterns(s.ctx, "ws-main", nil)
	s.Require().NoError(err)

	s.Equal(3, report.TotalChanges)
	s.Require().NotEmpty(report.FrequentFiles)
	s.Equal("hot.go", report.FrequentFiles[0].FilePath)
	s.Equal(2, report.FrequentFiles[0].Count)
	s.Equal(2, report.FrequentSymbols[0].Count)
	s.Equal(3, report.ChangeTypes[types.EventModify])
}

// TestPruneRemovesEmbeddings verifies retention sweep cascades
func (s *SearchTestSuite) TestPruneRemovesEmbeddings() {
	id := s.record("old.go", "ancient change")
	s.embedAll()

	deleted, err := s.store.PruneBefore(s.ctx, time.Now().UnixMilli()+1000)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	_, err = s.searcher.FindSimilar(s.ctx, id, 5)
	s.ErrorIs(err, types.ErrChangeNotFound)
}

// TestSearchTestSuite runs the test suite
func TestSearchTestSuite(t *testing.T) {
	suite.Run(t, new(SearchTestSuite))
}
