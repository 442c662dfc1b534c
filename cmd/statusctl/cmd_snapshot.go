package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/baidu"
	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/memstore"
	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/postgres"
	"github.com/couchcryptid/checkpoint-status-service/internal/config"
	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/observability"
	"github.com/couchcryptid/checkpoint-status-service/internal/offline"
	"github.com/couchcryptid/checkpoint-status-service/internal/pipeline"
)

func newSnapshotCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run one foreground refresh and print the ordered view",
		Long: "Load configuration from the environment, run a single foreground refresh\n" +
			"against the configured report store and print the published snapshot.\n" +
			"Without DATABASE_URL the in-memory demo store is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := refreshOnce(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			return printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

// refreshOnce wires the pipeline the way the service does and runs a single
// foreground cycle. Logs go to logOut so stdout stays machine-readable.
func refreshOnce(ctx context.Context, logOut io.Writer) (domain.Snapshot, error) {
	cfg, err := config.Load()
	if err != nil {
		return domain.Snapshot{}, err
	}
	dataset, err := offline.Load()
	if err != nil {
		return domain.Snapshot{}, err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewUnregisteredMetrics()

	var store domain.ReportStore
	if cfg.DemoMode() {
		store = memstore.NewFromDataset(dataset, clockwork.NewRealClock(), cfg.ReportWindow)
	} else {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, cfg.ReportWindow)
		if err != nil {
			return domain.Snapshot{}, err
		}
		defer pg.Close()
		store = pg
	}

	var source domain.TrafficSource
	if cfg.TrafficEnabled {
		source = baidu.NewClient(cfg.BaiduAK, cfg.BaiduTrafficURL, logger)
	}
	prober := pipeline.NewProber(source, cfg.TrafficTimeout, logger, metrics)
	builder := pipeline.NewBuilder(store, pipeline.NewEnricher(prober, cfg.TrafficConcurrency))
	scheduler := pipeline.NewScheduler(builder, dataset, cfg.RefreshInterval, logger, metrics)

	scheduler.Refresh(ctx, pipeline.ModeForeground)
	return scheduler.Current(), nil
}
