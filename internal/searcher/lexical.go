package searcher

import (
	"strings"

	"github.com/edittrail/edittrail/pkg/types"
)

// BuildLexicalQuery converts free text into an FTS5 match expression. Tokens
// are OR-ed with prefix matching so partial identifiers still hit, and
// anything FTS5 would treat as syntax is stripped first.
func BuildLexicalQuery(query string) string {
	var b strings.Builder
	for _, r := range query {
		if isQueryRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	var terms []string
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) <= 1 {
			continue
		}
		terms = append(terms, `"`+tok+`"*`)
	}
	return strings.Join(terms, " OR ")
}

func isQueryRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	}
	return false
}

// matchesFilters applies the filters the FTS query itself cannot express.
// The workspace is already scoped in SQL; time range, file globs, and event
// kinds are checked here so both retrieval legs see the same candidate set.
func matchesFilters(rec *types.ChangeRecord, filters *types.Filters) bool {
	if filters == nil {
		return true
	}
	if filters.TimeRange != nil && !filters.TimeRange.Contains(rec.Timestamp) {
		return false
	}
	if len(filters.EventKinds) > 0 {
		found := false
		for _, kind := range filters.EventKinds {
			if rec.Kind == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filters.FilePatterns) > 0 {
		found := false
		for _, pattern := range filters.FilePatterns {
			if globMatch(pattern, rec.FilePath) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// globMatch mirrors the wildcard semantics the storage layer applies to the
// vector leg via SQL GLOB: '*' matches any run of characters including '/',
// '?' matches exactly one character.
func globMatch(pattern, s string) bool {
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			star, mark = pi, si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
