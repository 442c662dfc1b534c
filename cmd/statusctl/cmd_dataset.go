package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/checkpoint-status-service/internal/offline"
)

func newDatasetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dataset",
		Short: "Validate and print the embedded offline dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := offline.Load()
			if err != nil {
				return fmt.Errorf("offline dataset is invalid: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "offline dataset OK: %d checkpoints, %d blacklist items\n\n",
				len(ds.Checkpoints), len(ds.Blacklist))
			return printSnapshot(out, ds.Snapshot(time.Time{}))
		},
	}
}
