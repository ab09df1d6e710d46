package storage

import (
	"context"
	"time"

	"github.com/edittrail/edittrail/pkg/types"
)

// Storage defines the interface for persisting and querying recorded changes.
// It covers the three collaborator roles the retrieval core consumes: the
// relational metadata store, the lexical (full-text) store, and the vector
// index.
type Storage interface {
	// Change operations
	InsertChange(ctx context.Context, change *types.ChangeRecord) error
	GetChange(ctx context.Context, id string) (*types.ChangeRecord, error)
	AttachEmbedding(ctx context.Context, changeID, embeddingID string) error
	AttachSummary(ctx context.Context, changeID, summary string) error
	ListChanges(ctx context.Context, filters *types.Filters, limit int) ([]*types.ChangeRecord, error)
	ListUnembedded(ctx context.Context, limit int) ([]*types.ChangeRecord, error)

	// Timeline lookups, bypassing fusion entirely
	FileTimeline(ctx context.Context, workspaceID, filePath string, limit int) ([]*types.ChangeRecord, error)
	SymbolTimeline(ctx context.Context, workspaceID, symbol string, limit int) ([]*types.ChangeRecord, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, emb *Embedding) error
	GetEmbeddingByChange(ctx context.Context, changeID string) (*Embedding, error)

	// Search legs
	SearchVector(ctx context.Context, vector []float32, topK int, filters *types.Filters) ([]VectorResult, error)
	SearchLexical(ctx context.Context, workspaceID, queryExpr string, limit int) ([]LexicalResult, error)

	// Retention
	PruneBefore(ctx context.Context, cutoff int64) (int64, error)
	ClearHistory(ctx context.Context, workspaceID string) (int64, error)

	// Status
	Stats(ctx context.Context, workspaceID string) (*Stats, error)

	Close() error
}

// Embedding is a stored vector embedding for one change record.
type Embedding struct {
	ID        string
	ChangeID  string
	Vector    []byte // serialized float32 array, little-endian
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// VectorResult is one nearest-neighbor hit from the vector index.
type VectorResult struct {
	ID       string // embedding id
	ChangeID string
	Score    float64 // similarity, 1 - distance
	Distance float64
}

// LexicalResult is one full-text hit. Rank is a 1-based relevance position,
// not a score; the FTS engine orders by BM25 internally but only the ordinal
// is exposed.
type LexicalResult struct {
	Record *types.ChangeRecord
	Rank   int
}

// Stats aggregates index state for one workspace (or all, if empty).
type Stats struct {
	TotalChanges    int64
	EmbeddedChanges int64
	Workspaces      int64
	EarliestTS      int64
	LatestTS        int64
}
