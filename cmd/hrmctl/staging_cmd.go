package main

import (
	"time"

	"github.com/spf13/cobra"
)

type pruneOutput struct {
	Command    string `json:"command"`
	DryRun     bool   `json:"dry_run"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newStagingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Maintain staged document uploads",
	}

	var dryRun bool
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete stale staged files no pending request references",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			start := time.Now()
			report, err := a.Janitor.Prune(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return writeJSON(pruneOutput{
				Command:    "staging prune",
				DryRun:     dryRun,
				DurationMS: time.Since(start).Milliseconds(),
				Result:     report,
			})
		},
	}
	prune.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without deleting")
	cmd.AddCommand(prune)
	return cmd
}
