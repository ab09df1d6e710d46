package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edittrail/edittrail/internal/embedder"
	"github.com/edittrail/edittrail/internal/storage"
	"github.com/edittrail/edittrail/pkg/types"
)

// Processor coordinates the write pipeline: validate -> persist -> embed.
// Embedding is decoupled from recording so a dead provider never blocks
// writes; EmbedPending backfills whatever recording left behind.
type Processor struct {
	store    storage.Storage
	embedder embedder.Embedder

	backfill RunLock
}

// Config contains configuration for the embedding backfill.
type Config struct {
	BatchSize int // records per provider call (default: 16)
	Workers   int // concurrent provider calls (default: 2)
}

// Statistics describes one backfill run.
type Statistics struct {
	Embedded int
	Failed   int
	Duration time.Duration
}

// New creates a Processor over the given store and embedder. The embedder
// may be nil, in which case records are persisted without vectors and only
// the lexical leg can find them.
func New(store storage.Storage, emb embedder.Embedder) *Processor {
	return &Processor{store: store, embedder: emb}
}

// RecordChange validates and persists a change record. A missing ID is
// assigned a time-ordered UUID so insertion order and ID order agree; a
// missing timestamp defaults to now. The searchable text is composed from
// the record's fields when the caller did not provide it.
func (p *Processor) RecordChange(ctx context.Context, rec *types.ChangeRecord) error {
	if rec == nil {
		return types.ErrMissingRecord
	}
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate change id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	if rec.SearchText == "" {
		rec.SearchText = rec.ComposeSearchText()
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := p.store.InsertChange(ctx, rec); err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	return nil
}

// EmbedPending embeds records that have no stored vector yet. Batches run
// concurrently up to cfg.Workers; a failed batch is logged and skipped so
// one poisoned record cannot wedge the backfill. Only one backfill runs at
// a time; a second call while one is in flight returns immediately.
func (p *Processor) EmbedPending(ctx context.Context, cfg *Config) (*Statistics, error) {
	if p.embedder == nil {
		return nil, embedder.ErrNoProviderEnabled
	}
	if !p.backfill.TryAcquire() {
		return nil, ErrBackfillRunning
	}
	defer p.backfill.Release()

	if cfg == nil {
		cfg = &Config{}
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}

	started := time.Now()
	stats := &Statistics{}

	for {
		pending, err := p.store.ListUnembedded(ctx, batchSize*workers)
		if err != nil {
			return nil, fmt.Errorf("list unembedded: %w", err)
		}
		if len(pending) == 0 {
			break
		}

		results := make([]Statistics, (len(pending)+batchSize-1)/batchSize)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := 0; i < len(pending); i += batchSize {
			end := i + batchSize
			if end > len(pending) {
				end = len(pending)
			}
			batch := pending[i:end]
			slot := &results[i/batchSize]
			g.Go(func() error {
				embedded, err := p.embedBatch(gctx, batch)
				slot.Embedded = embedded
				slot.Failed = len(batch) - embedded
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		progressed := false
		for _, r := range results {
			stats.Embedded += r.Embedded
			stats.Failed += r.Failed
			if r.Embedded > 0 {
				progressed = true
			}
		}
		// Every record in the window failed; stop rather than spin on the
		// same unembeddable set forever.
		if !progressed {
			break
		}
	}

	stats.Duration = time.Since(started)
	return stats, nil
}

// embedBatch embeds one batch of records. Provider failures are logged and
// reported through the returned count; only context cancellation aborts the
// run.
func (p *Processor) embedBatch(ctx context.Context, batch []*types.ChangeRecord) (int, error) {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = embeddingText(rec)
	}
	resp, err := p.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Printf("ingest: batch embedding failed (%d records): %v", len(batch), err)
		return 0, nil
	}
	if len(resp.Embeddings) != len(batch) {
		log.Printf("ingest: provider returned %d embeddings for %d records", len(resp.Embeddings), len(batch))
		return 0, nil
	}

	embedded := 0
	for i, rec := range batch {
		id, err := uuid.NewV7()
		if err != nil {
			return embedded, fmt.Errorf("generate embedding id: %w", err)
		}
		emb := &storage.Embedding{
			ID:        id.String(),
			ChangeID:  rec.ID,
			Vector:    storage.SerializeVector(resp.Embeddings[i].Vector),
			Dimension: resp.Embeddings[i].Dimension,
			Provider:  resp.Provider,
			Model:     resp.Model,
		}
		if err := p.store.UpsertEmbedding(ctx, emb); err != nil {
			log.Printf("ingest: store embedding for %s: %v", rec.ID, err)
			continue
		}
		if err := p.store.AttachEmbedding(ctx, rec.ID, emb.ID); err != nil {
			log.Printf("ingest: attach embedding to %s: %v", rec.ID, err)
			continue
		}
		embedded++
	}
	return embedded, nil
}

// embeddingText is the document-side text fed to the embedder. Documents are
// embedded bare; the query side carries the asymmetric prefix.
func embeddingText(rec *types.ChangeRecord) string {
	if rec.SearchText != "" {
		return rec.SearchText
	}
	return strings.TrimSpace(rec.ComposeSearchText())
}
