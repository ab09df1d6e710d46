package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edittrail/edittrail/pkg/types"
)

var (
	flagPatternsWorkspace string
	flagPatternsDays      int
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Aggregate edit activity over a time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		var timeRange *types.TimeRange
		if flagPatternsDays > 0 {
			now := time.Now()
			timeRange = &types.TimeRange{
				Start: now.AddDate(0, 0, -flagPatternsDays).UnixMilli(),
				End:   now.UnixMilli(),
			}
		}

		report, err := eng.searcher.AnalyzePatterns(cmd.Context(), flagPatternsWorkspace, timeRange)
		if err != nil {
			return err
		}

		fmt.Printf("Total changes: %d\n", report.TotalChanges)
		if len(report.ChangeTypes) > 0 {
			fmt.Println("\nBy change type:")
			for _, kind := range []types.EventKind{types.EventCreate, types.EventModify, types.EventDelete, types.EventRename} {
				if n := report.ChangeTypes[kind]; n > 0 {
					fmt.Printf("  %-7s %d\n", kind, n)
				}
			}
		}
		if len(report.FrequentFiles) > 0 {
			fmt.Println("\nMost edited files:")
			for _, f := range report.FrequentFiles {
				fmt.Printf("  %4d  %s\n", f.Count, f.FilePath)
			}
		}
		if len(report.FrequentSymbols) > 0 {
			fmt.Println("\nMost edited symbols:")
			for _, s := range report.FrequentSymbols {
				fmt.Printf("  %4d  %s\n", s.Count, s.Symbol)
			}
		}
		return nil
	},
}

func init() {
	patternsCmd.Flags().StringVar(&flagPatternsWorkspace, "workspace", "", "restrict to a workspace")
	patternsCmd.Flags().IntVar(&flagPatternsDays, "days", 0, "only the last N days (default: all history)")
	rootCmd.AddCommand(patternsCmd)
}
