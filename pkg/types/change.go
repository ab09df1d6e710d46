package types

import (
	"strings"
	"time"
)

// EventKind classifies a recorded file mutation.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventModify EventKind = "modify"
	EventDelete EventKind = "delete"
	EventRename EventKind = "rename"
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventCreate, EventModify, EventDelete, EventRename:
		return true
	}
	return false
}

// ChangeRecord is an immutable-once-created fact about one file mutation.
// After creation only EmbeddingID and Summary may be attached by async
// post-processing; records are otherwise never mutated, and removed only by
// retention sweeps or an explicit history clear.
type ChangeRecord struct {
	// Identity
	ID        string // sortable unique id (UUIDv7)
	Timestamp int64  // milliseconds since epoch

	// Location
	WorkspaceID  string
	FilePath     string // relative to workspace root
	AbsolutePath string
	Language     string

	// The edit itself
	Kind         EventKind
	Diff         string // unified diff text
	LinesAdded   int
	LinesDeleted int
	LineCount    int // total line count after the edit

	// Optional snapshots, normally omitted to save space
	ContentBefore *string
	ContentAfter  *string

	// Semantic tags
	Symbols []string
	Imports []string

	// Provenance
	GitBranch string
	GitCommit string
	GitAuthor string

	// Search support
	EmbeddingID *string // pointer to the record's vector embedding, if any
	Summary     string  // LLM-generated one-line summary, if any
	SearchText  string  // precomputed searchable blob

	CreatedAt time.Time
}

// ComposeSearchText builds the searchable blob from the record's fields.
// Used at record time when the capture pipeline did not precompute one.
func (c *ChangeRecord) ComposeSearchText() string {
	parts := make([]string, 0, 6)
	parts = append(parts, c.FilePath)
	if len(c.Symbols) > 0 {
		parts = append(parts, strings.Join(c.Symbols, " "))
	}
	if len(c.Imports) > 0 {
		parts = append(parts, strings.Join(c.Imports, " "))
	}
	if c.Summary != "" {
		parts = append(parts, c.Summary)
	}
	if c.Diff != "" {
		parts = append(parts, c.Diff)
	}
	return strings.Join(parts, "\n")
}

// Validate checks the fields required of every record.
func (c *ChangeRecord) Validate() error {
	if c.ID == "" {
		return ErrInvalidChangeID
	}
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	if !c.Kind.Valid() {
		return ErrInvalidEventKind
	}
	if c.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// TimeRange is a half-open [Start, End) window in epoch milliseconds.
type TimeRange struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the range.
func (r TimeRange) Contains(ts int64) bool {
	return ts >= r.Start && ts < r.End
}

// Filters narrows a search or timeline lookup.
type Filters struct {
	WorkspaceID  string
	TimeRange    *TimeRange
	FilePatterns []string // glob patterns, ORed together
	EventKinds   []EventKind
}

// Clone returns a deep copy so enrichment never mutates caller state.
func (f *Filters) Clone() *Filters {
	if f == nil {
		return &Filters{}
	}
	out := &Filters{
		WorkspaceID: f.WorkspaceID,
	}
	if f.TimeRange != nil {
		tr := *f.TimeRange
		out.TimeRange = &tr
	}
	out.FilePatterns = append(out.FilePatterns, f.FilePatterns...)
	out.EventKinds = append(out.EventKinds, f.EventKinds...)
	return out
}

// Default hybrid search parameters.
const (
	DefaultVectorWeight  = 0.6
	DefaultKeywordWeight = 0.4
	DefaultRerankTopK    = 50
	DefaultResultLimit   = 20
)

// HybridParams is the per-query retrieval configuration. The weights are
// relative, need not sum to 1, and must be >= 0. A zero weight silences that
// leg's scoring contribution; the leg still executes for candidate coverage.
type HybridParams struct {
	VectorWeight  float64
	KeywordWeight float64
	RerankTopK    int // candidate pool size fed to fusion
	ResultLimit   int // final truncation after fusion/rerank
}

// Normalized returns a copy with defaults applied and invalid values clamped.
func (p HybridParams) Normalized() HybridParams {
	if p.VectorWeight < 0 {
		p.VectorWeight = 0
	}
	if p.KeywordWeight < 0 {
		p.KeywordWeight = 0
	}
	if p.VectorWeight == 0 && p.KeywordWeight == 0 {
		p.VectorWeight = DefaultVectorWeight
		p.KeywordWeight = DefaultKeywordWeight
	}
	if p.RerankTopK <= 0 {
		p.RerankTopK = DefaultRerankTopK
	}
	if p.ResultLimit <= 0 {
		p.ResultLimit = DefaultResultLimit
	}
	return p
}
