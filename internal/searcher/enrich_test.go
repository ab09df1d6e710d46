package searcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edittrail/edittrail/pkg/types"
)

// fixedNow is a Wednesday, 2025-06-11 14:30 UTC.
var fixedNow = time.Date(2025, 6, 11, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestParseTimeRangeNamed(t *testing.T) {
	midnight := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query string
		start time.Time
		end   time.Time
	}{
		{"today", "what did I change today", midnight, midnight.AddDate(0, 0, 1)},
		{"yesterday", "refactoring yesterday", midnight.AddDate(0, 0, -1), midnight},
		{"this week", "auth work this week", monday, monday.AddDate(0, 0, 7)},
		{"last week", "what happened last week", monday.AddDate(0, 0, -7), monday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := parseTimeRange(tt.query, fixedNow)
			require.NotNil(t, tr)
			assert.Equal(t, tt.start.UnixMilli(), tr.Start)
			assert.Equal(t, tt.end.UnixMilli(), tr.End)
		})
	}
}

func TestParseTimeRangeNumeric(t *testing.T) {
	tr := parseTimeRange("auth changes 2 days ago", fixedNow)
	require.NotNil(t, tr)
	assert.Equal(t, fixedNow.Add(-48*time.Hour).UnixMilli(), tr.Start)
	assert.Equal(t, fixedNow.UnixMilli(), tr.End)

	tr = parseTimeRange("the bug from 3 hours ago", fixedNow)
	require.NotNil(t, tr)
	assert.Equal(t, fixedNow.Add(-3*time.Hour).UnixMilli(), tr.Start)

	tr = parseTimeRange("1 week ago", fixedNow)
	require.NotNil(t, tr)
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour).UnixMilli(), tr.Start)
}

func TestParseTimeRangeNamedWinsOverNumeric(t *testing.T) {
	// Both forms present; the named expression is tried first.
	tr := parseTimeRange("yesterday, not 3 days ago", fixedNow)
	require.NotNil(t, tr)
	midnight := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight.AddDate(0, 0, -1).UnixMilli(), tr.Start)
	assert.Equal(t, midnight.UnixMilli(), tr.End)
}

func TestParseTimeRangeNone(t *testing.T) {
	assert.Nil(t, parseTimeRange("parser refactor", fixedNow))
	assert.Nil(t, parseTimeRange("days ago we did things", fixedNow))
}

func TestExtractFilePatternsLanguage(t *testing.T) {
	patterns := extractFilePatterns("python changes to the parser")
	assert.Equal(t, []string{"**/*.py"}, patterns)

	// Whole-token match only: "go" inside "going" must not fire.
	assert.Empty(t, extractFilePatterns("going over the release notes"))

	patterns = extractFilePatterns("typescript auth work")
	assert.Equal(t, []string{"**/*.ts", "**/*.tsx"}, patterns)
}

func TestExtractFilePatternsFilePhrase(t *testing.T) {
	patterns := extractFilePatterns("the fix in parser.ts for tokens")
	assert.Equal(t, []string{"**/parser.ts*"}, patterns)

	patterns = extractFilePatterns("changes from internal/auth/session.go last time")
	assert.Equal(t, []string{"**/internal/auth/session.go*"}, patterns)
}

func TestEnrichFiltersExplicitTimeRangeWins(t *testing.T) {
	explicit := &types.Filters{
		TimeRange: &types.TimeRange{Start: 100, End: 200},
	}
	out := EnrichFilters("what changed yesterday", explicit, fixedClock)
	assert.Equal(t, int64(100), out.TimeRange.Start)
	assert.Equal(t, int64(200), out.TimeRange.End)
	// Enrichment must not mutate the caller's filters.
	assert.Equal(t, int64(100), explicit.TimeRange.Start)
}

func TestEnrichFiltersUnionsPatterns(t *testing.T) {
	explicit := &types.Filters{FilePatterns: []string{"src/**"}}
	out := EnrichFilters("python fixes", explicit, fixedClock)
	assert.Equal(t, []string{"src/**", "**/*.py"}, out.FilePatterns)

	// Duplicates collapse.
	explicit = &types.Filters{FilePatterns: []string{"**/*.py"}}
	out = EnrichFilters("python fixes", explicit, fixedClock)
	assert.Equal(t, []string{"**/*.py"}, out.FilePatterns)
}

func TestEnrichFiltersNilExplicit(t *testing.T) {
	out := EnrichFilters("rust changes today", nil, fixedClock)
	require.NotNil(t, out)
	require.NotNil(t, out.TimeRange)
	assert.Equal(t, []string{"**/*.rs"}, out.FilePatterns)
}
