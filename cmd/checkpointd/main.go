package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/baidu"
	httpadapter "github.com/couchcryptid/checkpoint-status-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/checkpoint-status-service/internal/adapter/kafka"
	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/memstore"
	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/natsbus"
	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/postgres"
	"github.com/couchcryptid/checkpoint-status-service/internal/adapter/s3archive"
	"github.com/couchcryptid/checkpoint-status-service/internal/config"
	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/mutation"
	"github.com/couchcryptid/checkpoint-status-service/internal/observability"
	"github.com/couchcryptid/checkpoint-status-service/internal/offline"
	"github.com/couchcryptid/checkpoint-status-service/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	dataset, err := offline.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Report store: Postgres when DATABASE_URL is set, otherwise the demo store.
	var (
		store     domain.ReportStore
		schedOpts []pipeline.SchedulerOption
	)
	if cfg.DemoMode() {
		store = memstore.NewFromDataset(dataset, clockwork.NewRealClock(), cfg.ReportWindow)
		logger.Warn("DATABASE_URL not set, running on the in-memory demo store")
	} else {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, cfg.ReportWindow)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		schedOpts = append(schedOpts, pipeline.WithStorePing(pg))
		logger.Info("postgres report store connected")
	}

	// Traffic source (feature-flagged via TRAFFIC_ENABLED / BAIDU_MAP_AK).
	var source domain.TrafficSource
	if cfg.TrafficEnabled {
		source = baidu.NewClient(cfg.BaiduAK, cfg.BaiduTrafficURL, logger)
		logger.Info("traffic probe enabled", "timeout", cfg.TrafficTimeout, "concurrency", cfg.TrafficConcurrency)
	} else {
		logger.Info("traffic probe disabled")
	}
	prober := pipeline.NewProber(source, cfg.TrafficTimeout, logger, metrics)
	builder := pipeline.NewBuilder(store, pipeline.NewEnricher(prober, cfg.TrafficConcurrency))

	// Optional snapshot sinks.
	var sinks []pipeline.Sink
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewSnapshotWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
		logger.Info("kafka snapshot sink enabled", "topic", cfg.KafkaSnapshotTopic)
	}
	if cfg.S3Bucket != "" {
		archive, err := s3archive.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, archive)
		logger.Info("s3 snapshot archive enabled", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
	}

	schedOpts = append(schedOpts, pipeline.WithSinks(sinks...))
	scheduler := pipeline.NewScheduler(builder, dataset, cfg.RefreshInterval, logger, metrics, schedOpts...)

	// Change notifications between instances.
	var coordOpts []mutation.Option
	if cfg.NATSURL != "" {
		bus, err := natsbus.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return err
		}
		defer bus.Close()
		if err := bus.Listen(ctx, scheduler); err != nil {
			return err
		}
		coordOpts = append(coordOpts, mutation.WithNotifier(bus))
	}
	coordinator := mutation.New(store, scheduler, cfg.MutationCooldown, logger, metrics, coordOpts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, coordinator, prober, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start refresh scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}
