package searcher

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edittrail/edittrail/pkg/types"
)

// Clock supplies the current time for relative time-expression parsing.
// Tests inject a fixed clock.
type Clock func() time.Time

type namedRange struct {
	pattern *regexp.Regexp
	resolve func(now time.Time) types.TimeRange
}

// Named expressions are tried before numeric "N units ago" forms so that
// "yesterday" never falls through to a partial numeric match. First match wins.
var namedRanges = []namedRange{
	{
		pattern: regexp.MustCompile(`(?i)\btoday\b`),
		resolve: func(now time.Time) types.TimeRange {
			start := startOfDay(now)
			return types.TimeRange{Start: toMillis(start), End: toMillis(start.AddDate(0, 0, 1))}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\byesterday\b`),
		resolve: func(now time.Time) types.TimeRange {
			end := startOfDay(now)
			return types.TimeRange{Start: toMillis(end.AddDate(0, 0, -1)), End: toMillis(end)}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bthis\s+week\b`),
		resolve: func(now time.Time) types.TimeRange {
			start := startOfWeek(now)
			return types.TimeRange{Start: toMillis(start), End: toMillis(start.AddDate(0, 0, 7))}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\blast\s+week\b`),
		resolve: func(now time.Time) types.TimeRange {
			end := startOfWeek(now)
			return types.TimeRange{Start: toMillis(end.AddDate(0, 0, -7)), End: toMillis(end)}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bthis\s+month\b`),
		resolve: func(now time.Time) types.TimeRange {
			start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
			return types.TimeRange{Start: toMillis(start), End: toMillis(start.AddDate(0, 1, 0))}
		},
	},
}

var numericAgo = regexp.MustCompile(`(?i)\b(\d+)\s*(hour|day|week)s?\s+ago\b`)

// Language keywords map to recursive extension globs. Matching is on whole
// lowercased tokens so "go" in "going" never fires.
var languageGlobs = map[string][]string{
	"python":     {"**/*.py"},
	"go":         {"**/*.go"},
	"golang":     {"**/*.go"},
	"rust":       {"**/*.rs"},
	"javascript": {"**/*.js", "**/*.jsx"},
	"typescript": {"**/*.ts", "**/*.tsx"},
	"java":       {"**/*.java"},
	"ruby":       {"**/*.rb"},
	"php":        {"**/*.php"},
	"swift":      {"**/*.swift"},
	"kotlin":     {"**/*.kt"},
	"sql":        {"**/*.sql"},
	"markdown":   {"**/*.md"},
	"yaml":       {"**/*.yaml", "**/*.yml"},
}

// filePhrase captures "in parser.ts", "from internal/foo.go", "file main.py".
var filePhrase = regexp.MustCompile(`(?i)\b(?:in|from|file)\s+([\w./-]+\.[A-Za-z0-9]+)`)

var wordSplit = regexp.MustCompile(`[^a-z0-9_+#]+`)

// EnrichFilters derives implicit filters from the natural-language query and
// merges them with any explicit filters. An explicit time range always wins
// over a parsed one; file patterns from both sources are unioned.
func EnrichFilters(query string, explicit *types.Filters, now Clock) *types.Filters {
	out := explicit.Clone()
	if out == nil {
		out = &types.Filters{}
	}
	if out.TimeRange == nil {
		if tr := parseTimeRange(query, now()); tr != nil {
			out.TimeRange = tr
		}
	}
	out.FilePatterns = unionPatterns(out.FilePatterns, extractFilePatterns(query))
	return out
}

func parseTimeRange(query string, now time.Time) *types.TimeRange {
	for _, nr := range namedRanges {
		if nr.pattern.MatchString(query) {
			tr := nr.resolve(now)
			return &tr
		}
	}
	if m := numericAgo.FindStringSubmatch(query); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil
		}
		var d time.Duration
		switch strings.ToLower(m[2]) {
		case "hour":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		case "week":
			d = time.Duration(n) * 7 * 24 * time.Hour
		}
		return &types.TimeRange{Start: toMillis(now.Add(-d)), End: toMillis(now)}
	}
	return nil
}

func extractFilePatterns(query string) []string {
	var patterns []string
	for _, tok := range wordSplit.Split(strings.ToLower(query), -1) {
		if globs, ok := languageGlobs[tok]; ok {
			patterns = append(patterns, globs...)
		}
	}
	for _, m := range filePhrase.FindAllStringSubmatch(query, -1) {
		patterns = append(patterns, "**/"+m[1]+"*")
	}
	return patterns
}

func unionPatterns(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, p := range append(append([]string{}, a...), b...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the most recent Monday at midnight.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}
