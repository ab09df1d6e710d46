package searcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edittrail/edittrail/internal/embedder"
	"github.com/edittrail/edittrail/internal/reranker"
	"github.com/edittrail/edittrail/internal/storage"
	"github.com/edittrail/edittrail/pkg/types"
)

// Searcher orchestrates the hybrid retrieval pipeline: query enrichment,
// concurrent vector and lexical legs, normalization, weighted reciprocal rank
// fusion, optional cross-encoder reranking, and hydration. It holds no
// per-query state beyond the embedder's bounded cache, so Search is safe for
// concurrent use and idempotent over an unchanged store.
type Searcher struct {
	store       storage.Storage
	embedder    embedder.Embedder
	reranker    *reranker.Reranker
	notifier    Notifier
	now          Clock
	vectorFloor  float64
	lexicalFloor float64
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithReranker attaches an optional cross-encoder rerank stage.
func WithReranker(r *reranker.Reranker) Option {
	return func(s *Searcher) { s.reranker = r }
}

// WithNotifier sets the completion-event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Searcher) { s.notifier = n }
}

// WithClock overrides the time source used for relative time expressions.
func WithClock(c Clock) Option {
	return func(s *Searcher) { s.now = c }
}

// WithFloors overrides the per-leg normalized-score floors.
func WithFloors(vector, lexical float64) Option {
	return func(s *Searcher) {
		s.vectorFloor = vector
		s.lexicalFloor = lexical
	}
}

// New creates a Searcher over the given store and embedder.
func New(store storage.Storage, emb embedder.Embedder, opts ...Option) *Searcher {
	s := &Searcher{
		store:        store,
		embedder:     emb,
		notifier:     NopNotifier{},
		now:          time.Now,
		vectorFloor:  DefaultVectorFloor,
		lexicalFloor: DefaultKeywordFloor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the full hybrid pipeline for a natural-language query. Either
// retrieval leg may fail or return nothing without failing the query; a
// failed leg degrades to an empty contribution and the other leg carries the
// result. Orchestration errors (context cancellation, hydration failures)
// still propagate.
func (s *Searcher) Search(ctx context.Context, query string, filters *types.Filters, params *types.HybridParams) ([]types.SearchResult, error) {
	started := s.now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	p := types.HybridParams{}
	if params != nil {
		p = *params
	}
	p = p.Normalized()

	enriched := EnrichFilters(query, filters, s.now)

	var vecLeg, lexLeg []legEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecLeg = s.vectorLeg(gctx, query, p.RerankTopK, enriched)
		return nil
	})
	g.Go(func() error {
		lexLeg = s.lexicalLeg(gctx, query, p.RerankTopK, enriched)
		return nil
	})
	// Legs degrade internally and never return errors.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vecLeg = normalizeLeg(vecLeg, s.vectorFloor)
	lexLeg = normalizeLeg(lexLeg, s.lexicalFloor)
	fused := fuseRankings(vecLeg, lexLeg, p)
	if len(fused) > p.RerankTopK {
		fused = fused[:p.RerankTopK]
	}

	results, err := s.hydrate(ctx, query, fused, p)
	if err != nil {
		return nil, err
	}

	s.notifier.SearchCompleted(SearchEvent{
		Query:     query,
		Results:   results,
		Duration:  s.now().Sub(started),
		Timestamp: started,
	})
	return results, nil
}

// vectorLeg embeds the query and runs nearest-neighbor search. Any failure
// degrades to an empty leg with a log line rather than failing the query.
func (s *Searcher) vectorLeg(ctx context.Context, query string, topK int, filters *types.Filters) []legEntry {
	if s.embedder == nil {
		return nil
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text: embedder.QueryPrefix + query,
	})
	if err != nil {
		log.Printf("search: vector leg disabled for this query: %v", err)
		return nil
	}
	hits, err := s.store.SearchVector(ctx, emb.Vector, topK, filters)
	if err != nil {
		log.Printf("search: vector search failed: %v", err)
		return nil
	}
	leg := make([]legEntry, 0, len(hits))
	for i, h := range hits {
		leg = append(leg, legEntry{ChangeID: h.ChangeID, Raw: h.Score, Rank: i + 1})
	}
	return leg
}

// lexicalLeg runs full-text search. The store scopes the workspace and
// ranks by relevance; the remaining filters (time range, file globs, event
// kinds) are applied here so the leg honors the same enriched filters the
// vector leg pushes into SQL. Ranks are reassigned after filtering, and the
// reciprocal of the rank stands in as the raw score so min-max normalization
// has a magnitude to work with.
func (s *Searcher) lexicalLeg(ctx context.Context, query string, limit int, filters *types.Filters) []legEntry {
	expr := BuildLexicalQuery(query)
	if expr == "" {
		return nil
	}
	workspaceID := ""
	if filters != nil {
		workspaceID = filters.WorkspaceID
	}
	hits, err := s.store.SearchLexical(ctx, workspaceID, expr, limit)
	if err != nil {
		log.Printf("search: lexical search failed: %v", err)
		return nil
	}
	leg := make([]legEntry, 0, len(hits))
	for _, h := range hits {
		if !matchesFilters(h.Record, filters) {
			continue
		}
		rank := len(leg) + 1
		leg = append(leg, legEntry{
			ChangeID: h.Record.ID,
			Raw:      1.0 / float64(rank),
			Rank:     rank,
		})
	}
	return leg
}

// hydrate fetches full records for the fused candidates, applies the rerank
// stage when one is attached, truncates to the result limit, and builds
// highlights. Candidates whose record has been pruned between retrieval and
// hydration are silently skipped.
func (s *Searcher) hydrate(ctx context.Context, query string, fused []candidate, p types.HybridParams) ([]types.SearchResult, error) {
	records := make(map[string]*types.ChangeRecord, len(fused))
	kept := fused[:0]
	for _, c := range fused {
		rec, err := s.store.GetChange(ctx, c.ChangeID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", c.ChangeID, err)
		}
		records[c.ChangeID] = rec
		kept = append(kept, c)
	}
	fused = kept

	ordered := make([]types.SearchResult, 0, len(fused))
	if s.reranker != nil && s.reranker.IsEnabled() {
		docs := make([]reranker.Document, len(fused))
		for i, c := range fused {
			docs[i] = reranker.Document{
				ID:            c.ChangeID,
				Text:          candidateText(records[c.ChangeID]),
				OriginalScore: c.FusionScore,
			}
		}
		for _, sd := range s.reranker.Rerank(ctx, query, docs, len(docs)) {
			ordered = append(ordered, types.SearchResult{
				Record: records[sd.ID],
				Score:  sd.Score,
			})
		}
	} else {
		for _, c := range fused {
			ordered = append(ordered, types.SearchResult{
				Record: records[c.ChangeID],
				Score:  c.FusionScore,
			})
		}
	}

	if len(ordered) > p.ResultLimit {
		ordered = ordered[:p.ResultLimit]
	}

	terms := extractQueryTerms(query)
	for i := range ordered {
		ordered[i].Highlights = buildHighlights(ordered[i].Record, terms)
	}
	return ordered, nil
}

// candidateText serializes a record into the compact form fed to the
// reranker. The reranker applies its own character budget on top.
func candidateText(rec *types.ChangeRecord) string {
	parts := []string{rec.FilePath}
	if len(rec.Symbols) > 0 {
		parts = append(parts, strings.Join(rec.Symbols, " "))
	}
	if rec.Summary != "" {
		parts = append(parts, rec.Summary)
	}
	if rec.Diff != "" {
		parts = append(parts, rec.Diff)
	}
	return strings.Join(parts, "\n")
}

// FindSimilar returns records whose stored embeddings are nearest to the
// given change's embedding. The source record itself is excluded.
func (s *Searcher) FindSimilar(ctx context.Context, changeID string, topK int) ([]types.SearchResult, error) {
	if topK <= 0 {
		topK = types.DefaultResultLimit
	}
	if _, err := s.store.GetChange(ctx, changeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrChangeNotFound, changeID)
		}
		return nil, err
	}
	emb, err := s.store.GetEmbeddingByChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrNoEmbedding, changeID)
		}
		return nil, err
	}
	vector := storage.DeserializeVector(emb.Vector)
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNoEmbedding, changeID)
	}

	// Fetch one extra because the source record is always its own nearest
	// neighbor.
	hits, err := s.store.SearchVector(ctx, vector, topK+1, nil)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}

	results := make([]types.SearchResult, 0, topK)
	for _, h := range hits {
		if h.ChangeID == changeID {
			continue
		}
		rec, err := s.store.GetChange(ctx, h.ChangeID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", h.ChangeID, err)
		}
		results = append(results, types.SearchResult{Record: rec, Score: h.Score})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// FileTimeline returns the chronological history of a single file.
func (s *Searcher) FileTimeline(ctx context.Context, workspaceID, filePath string, limit int) ([]*types.ChangeRecord, error) {
	if limit <= 0 {
		limit = types.DefaultResultLimit
	}
	return s.store.FileTimeline(ctx, workspaceID, filePath, limit)
}

// SymbolTimeline returns the chronological history of changes touching a
// symbol.
func (s *Searcher) SymbolTimeline(ctx context.Context, workspaceID, symbol string, limit int) ([]*types.ChangeRecord, error) {
	if limit <= 0 {
		limit = types.DefaultResultLimit
	}
	return s.store.SymbolTimeline(ctx, workspaceID, symbol, limit)
}
