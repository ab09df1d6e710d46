package types

// Highlight marks where query terms matched a record field.
type Highlight struct {
	Field   string   // filePath, symbols, diff, summary
	Snippet string   // the matching text, possibly truncated
	Terms   []string // the query terms that matched
}

// SearchResult pairs a hydrated ChangeRecord with its final relevance score
// and highlight spans. Produced fresh per query; never persisted.
type SearchResult struct {
	Record     *ChangeRecord
	Score      float64
	Highlights []Highlight
}

// FileCount is one entry of a file-frequency tabulation.
type FileCount struct {
	FilePath string
	Count    int
}

// SymbolCount is one entry of a symbol-frequency tabulation.
type SymbolCount struct {
	Symbol string
	Count  int
}

// PatternReport aggregates edit activity over a time window. Pure
// tabulation over a bounded scan; no ranking involved.
type PatternReport struct {
	TotalChanges    int
	FrequentFiles   []FileCount
	FrequentSymbols []SymbolCount
	ActivityByHour  [24]int
	ChangeTypes     map[EventKind]int
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if sr.Record == nil {
		return ErrMissingRecord
	}
	if sr.Score < 0 {
		return ErrInvalidScore
	}
	return nil
}
