package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings for records that have none",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		stats, err := eng.processor.EmbedPending(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Printf("Embedded %d records (%d failed) in %s\n",
			stats.Embedded, stats.Failed, stats.Duration.Round(time.Millisecond))
		return nil
	},
}

var flagPruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		days := flagPruneDays
		if days <= 0 {
			days = eng.cfg.Retention.MaxAgeDays
		}
		if days <= 0 {
			return fmt.Errorf("no retention window: set --days or retention.max_age_days")
		}

		cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
		deleted, err := eng.store.PruneBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d records older than %d days\n", deleted, days)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print history store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		stats, err := eng.store.Stats(cmd.Context(), "")
		if err != nil {
			return err
		}
		fmt.Printf("Changes:    %d\n", stats.TotalChanges)
		fmt.Printf("Embedded:   %d\n", stats.EmbeddedChanges)
		fmt.Printf("Workspaces: %d\n", stats.Workspaces)
		if stats.TotalChanges > 0 {
			fmt.Printf("Span:       %s to %s\n",
				time.UnixMilli(stats.EarliestTS).Format("2006-01-02"),
				time.UnixMilli(stats.LatestTS).Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&flagPruneDays, "days", 0, "delete records older than N days (default from config)")
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
}
