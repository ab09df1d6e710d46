package searcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/edittrail/edittrail/pkg/types"
)

const maxDiffSnippetLines = 5

var nonWord = regexp.MustCompile(`[^a-z0-9_]+`)

// extractQueryTerms lowercases the query, strips non-word characters, and
// keeps unique tokens longer than two characters. Short tokens match too
// much to be useful for highlighting.
func extractQueryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range nonWord.Split(strings.ToLower(query), -1) {
		if len(tok) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// buildHighlights explains why a record matched by probing its file path,
// symbols, diff, and summary for query terms.
func buildHighlights(rec *types.ChangeRecord, terms []string) []types.Highlight {
	if len(terms) == 0 {
		return nil
	}
	var hs []types.Highlight

	if matched := matchedTerms(rec.FilePath, terms); len(matched) > 0 {
		hs = append(hs, types.Highlight{Field: "filePath", Snippet: rec.FilePath, Terms: matched})
	}

	var symHits []string
	symTerms := make(map[string]bool)
	for _, sym := range rec.Symbols {
		if matched := matchedTerms(sym, terms); len(matched) > 0 {
			symHits = append(symHits, sym)
			for _, t := range matched {
				symTerms[t] = true
			}
		}
	}
	if len(symHits) > 0 {
		hs = append(hs, types.Highlight{
			Field:   "symbols",
			Snippet: strings.Join(symHits, ", "),
			Terms:   keys(symTerms),
		})
	}

	if rec.Diff != "" {
		var lines []string
		diffTerms := make(map[string]bool)
		for _, line := range strings.Split(rec.Diff, "\n") {
			matched := matchedTerms(line, terms)
			if len(matched) == 0 {
				continue
			}
			lines = append(lines, line)
			for _, t := range matched {
				diffTerms[t] = true
			}
			if len(lines) == maxDiffSnippetLines {
				break
			}
		}
		if len(lines) > 0 {
			hs = append(hs, types.Highlight{
				Field:   "diff",
				Snippet: strings.Join(lines, "\n"),
				Terms:   keys(diffTerms),
			})
		}
	}

	if rec.Summary != "" {
		if matched := matchedTerms(rec.Summary, terms); len(matched) > 0 {
			hs = append(hs, types.Highlight{Field: "summary", Snippet: rec.Summary, Terms: matched})
		}
	}
	return hs
}

func matchedTerms(text string, terms []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched = append(matched, t)
		}
	}
	return matched
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
