package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

func newScoreCmd() *cobra.Command {
	var (
		severity string
		wait     int
		traffic  string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a reported color and wait time",
		Long:  "Print the strictness score and the displayed color for a crowd-reported\ncolor, an average wait and a road traffic color.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reported, err := domain.ParseSeverity(severity)
			if err != nil {
				return err
			}
			road, err := domain.ParseSeverity(traffic)
			if err != nil {
				return fmt.Errorf("traffic: %w", err)
			}
			if wait < 0 {
				return fmt.Errorf("%w: wait must not be negative", domain.ErrInvalidReport)
			}

			final, strictness := domain.Derive(reported, wait, domain.TrafficSample{Severity: road})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "strictness: %d/10\n", strictness)
			fmt.Fprintf(out, "status:     %s (%s)\n", final, final.Text())
			return nil
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "reported color: green, yellow or red")
	cmd.Flags().IntVar(&wait, "wait", 0, "average wait in minutes")
	cmd.Flags().StringVar(&traffic, "traffic", string(domain.SeverityGreen), "road traffic color")
	_ = cmd.MarkFlagRequired("severity")
	return cmd
}
