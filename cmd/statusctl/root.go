package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "statusctl",
		Short:         "Operator tooling for the checkpoint status service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.AddCommand(newScoreCmd(), newSnapshotCmd(), newDatasetCmd())
	return root
}

// printSnapshot writes the ordered checkpoint table followed by the
// blacklist ranking.
func printSnapshot(out io.Writer, snap domain.Snapshot) error {
	if snap.Offline {
		fmt.Fprintf(out, "OFFLINE: %s\n\n", snap.Notice)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tName\tStatus\tStrictness\tWait\tReports\tTraffic\tUpdated\n")
	fmt.Fprintf(w, "--\t----\t------\t----------\t----\t-------\t-------\t-------\n")
	for _, v := range snap.Checkpoints {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/10\t%d min\t%d\t%s\t%s\n",
			v.ID, v.Name, v.Status, v.StrictnessScore, v.WaitTimeMinutes,
			v.ReportCount, v.TrafficStatus, v.LastUpdated)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(snap.Blacklist) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Rank\tItem\tCategory\tToday\n")
	fmt.Fprintf(w, "----\t----\t--------\t-----\n")
	for _, it := range snap.Blacklist {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", it.Rank, it.Name, it.Category, it.ConfiscatedToday)
	}
	return w.Flush()
}
