package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/edittrail/edittrail/pkg/types"
)

var (
	flagSearchLimit     int
	flagSearchWorkspace string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search recorded edit history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		query := strings.Join(args, " ")
		params := eng.cfg.Search.HybridParams()
		if flagSearchLimit > 0 {
			params.ResultLimit = flagSearchLimit
		}
		var filters *types.Filters
		if flagSearchWorkspace != "" {
			filters = &types.Filters{WorkspaceID: flagSearchWorkspace}
		}

		results, err := eng.searcher.Search(cmd.Context(), query, filters, &params)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		for i, r := range results {
			rec := r.Record
			ts := time.UnixMilli(rec.Timestamp).Format("2006-01-02 15:04")
			fmt.Printf("%2d. [%.4f] %s  %s (%s)\n", i+1, r.Score, ts, rec.FilePath, rec.Kind)
			if rec.Summary != "" {
				fmt.Printf("      %s\n", rec.Summary)
			}
			for _, h := range r.Highlights {
				if h.Field == "filePath" {
					continue
				}
				snippet := h.Snippet
				if idx := strings.Index(snippet, "\n"); idx >= 0 {
					snippet = snippet[:idx] + " ..."
				}
				fmt.Printf("      %s: %s\n", h.Field, snippet)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchLimit, "limit", 0, "maximum results (default from config)")
	searchCmd.Flags().StringVar(&flagSearchWorkspace, "workspace", "", "restrict to a workspace")
	rootCmd.AddCommand(searchCmd)
}
