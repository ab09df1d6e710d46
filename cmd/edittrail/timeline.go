package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edittrail/edittrail/pkg/types"
)

var (
	flagTimelineLimit     int
	flagTimelineWorkspace string
	flagTimelineSymbol    bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <file-path|symbol>",
	Short: "Chronological history of a file or symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		var records []*types.ChangeRecord
		if flagTimelineSymbol {
			records, err = eng.searcher.SymbolTimeline(cmd.Context(), flagTimelineWorkspace, args[0], flagTimelineLimit)
		} else {
			records, err = eng.searcher.FileTimeline(cmd.Context(), flagTimelineWorkspace, args[0], flagTimelineLimit)
		}
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No history for %q\n", args[0])
			return nil
		}

		for _, rec := range records {
			ts := time.UnixMilli(rec.Timestamp).Format("2006-01-02 15:04")
			line := fmt.Sprintf("%s  %-7s %s", ts, rec.Kind, rec.FilePath)
			if rec.Summary != "" {
				line += "  " + rec.Summary
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	timelineCmd.Flags().IntVar(&flagTimelineLimit, "limit", 50, "maximum entries")
	timelineCmd.Flags().StringVar(&flagTimelineWorkspace, "workspace", "", "restrict to a workspace")
	timelineCmd.Flags().BoolVar(&flagTimelineSymbol, "symbol", false, "trace a symbol instead of a file path")
	rootCmd.AddCommand(timelineCmd)
}
