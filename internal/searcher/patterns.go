package searcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/edittrail/edittrail/pkg/types"
)

// maxPatternScan bounds how many records a single pattern analysis reads.
// Beyond this the aggregates stop changing meaningfully anyway.
const maxPatternScan = 10000

const topEntryCount = 10

// AnalyzePatterns aggregates change activity for a workspace: the most
// frequently edited files and symbols, activity bucketed by hour of day, and
// change-type counts. The scan is bounded by maxPatternScan records.
func (s *Searcher) AnalyzePatterns(ctx context.Context, workspaceID string, timeRange *types.TimeRange) (*types.PatternReport, error) {
	filters := &types.Filters{WorkspaceID: workspaceID, TimeRange: timeRange}
	changes, err := s.store.ListChanges(ctx, filters, maxPatternScan)
	if err != nil {
		return nil, fmt.Errorf("analyze patterns: %w", err)
	}

	report := &types.PatternReport{
		TotalChanges: len(changes),
		ChangeTypes:  make(map[types.EventKind]int),
	}
	fileCounts := make(map[string]int)
	symbolCounts := make(map[string]int)
	for _, ch := range changes {
		fileCounts[ch.FilePath]++
		for _, sym := range ch.Symbols {
			symbolCounts[sym]++
		}
		report.ChangeTypes[ch.Kind]++
		hour := time.UnixMilli(ch.Timestamp).Hour()
		report.ActivityByHour[hour]++
	}
	report.FrequentFiles = topFiles(fileCounts)
	report.FrequentSymbols = topSymbols(symbolCounts)
	return report, nil
}

func topFiles(counts map[string]int) []types.FileCount {
	entries := make([]types.FileCount, 0, len(counts))
	for path, n := range counts {
		entries = append(entries, types.FileCount{FilePath: path, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].FilePath < entries[j].FilePath
	})
	if len(entries) > topEntryCount {
		entries = entries[:topEntryCount]
	}
	return entries
}

func topSymbols(counts map[string]int) []types.SymbolCount {
	entries := make([]types.SymbolCount, 0, len(counts))
	for sym, n := range counts {
		entries = append(entries, types.SymbolCount{Symbol: sym, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Symbol < entries[j].Symbol
	})
	if len(entries) > topEntryCount {
		entries = entries[:topEntryCount]
	}
	return entries
}
