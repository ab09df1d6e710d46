package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/edittrail/edittrail/pkg/types"
)

var (
	flagRecordWorkspace string
	flagRecordKind      string
	flagRecordLanguage  string
	flagRecordSummary   string
	flagRecordSymbols   []string
	flagRecordStdin     bool
)

var recordCmd = &cobra.Command{
	Use:   "record <file-path>",
	Short: "Record a file edit into the history store",
	Long: `Record a file edit. The diff is read from stdin when --stdin is set,
so the command composes with git:

  git diff HEAD~1 -- main.go | edittrail record main.go --stdin --workspace myapp`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		var diff string
		if flagRecordStdin {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read diff from stdin: %w", err)
			}
			diff = string(data)
		}

		rec := &types.ChangeRecord{
			WorkspaceID: flagRecordWorkspace,
			FilePath:    args[0],
			Kind:        types.EventKind(flagRecordKind),
			Language:    flagRecordLanguage,
			Summary:     flagRecordSummary,
			Symbols:     flagRecordSymbols,
			Diff:        diff,
		}
		if err := eng.processor.RecordChange(cmd.Context(), rec); err != nil {
			return err
		}
		fmt.Printf("Recorded %s (%s)\n", rec.ID, rec.FilePath)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&flagRecordWorkspace, "workspace", "default", "workspace the edit belongs to")
	recordCmd.Flags().StringVar(&flagRecordKind, "kind", "modify", "change type (create, modify, delete, rename)")
	recordCmd.Flags().StringVar(&flagRecordLanguage, "language", "", "source language of the file")
	recordCmd.Flags().StringVar(&flagRecordSummary, "summary", "", "one-line description of the edit")
	recordCmd.Flags().StringSliceVar(&flagRecordSymbols, "symbols", nil, "symbols touched by the edit")
	recordCmd.Flags().BoolVar(&flagRecordStdin, "stdin", false, "read the diff from stdin")
	rootCmd.AddCommand(recordCmd)
}
