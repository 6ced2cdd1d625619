// Package main provides the entry point for the bibliographic sync service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openshelf/bibsync-service/internal/citegraph"
	"github.com/openshelf/bibsync-service/internal/config"
	"github.com/openshelf/bibsync-service/internal/database"
	"github.com/openshelf/bibsync-service/internal/events"
	"github.com/openshelf/bibsync-service/internal/extract"
	"github.com/openshelf/bibsync-service/internal/fulltext"
	"github.com/openshelf/bibsync-service/internal/inference"
	"github.com/openshelf/bibsync-service/internal/observability"
	"github.com/openshelf/bibsync-service/internal/registry"
	"github.com/openshelf/bibsync-service/internal/repository"
	httpserver "github.com/openshelf/bibsync-service/internal/server/http"
	"github.com/openshelf/bibsync-service/internal/sources/ads"
	syncengine "github.com/openshelf/bibsync-service/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("bibsync-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Set up metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("bibsync")
	}

	// Create repositories.
	paperRepo := repository.NewPgPaperRepository(db)
	sourceRepo := repository.NewPgSourceRepository(db)
	edgeRepo := repository.NewPgEdgeRepository(db)

	// Create the source registry and citation graph cache.
	reg := registry.New(paperRepo, sourceRepo, registry.Config{
		SourcePriorities: cfg.Sync.SourcePriorities,
	}, logger)
	graph := citegraph.New(edgeRepo, paperRepo, cfg.Sync.FreshnessWindow, metrics, logger)

	// Create the remote source client.
	adsClient := ads.NewClient(ads.Config{
		BaseURL:   cfg.ADS.BaseURL,
		Token:     cfg.ADS.Token,
		Timeout:   cfg.ADS.Timeout,
		RateLimit: cfg.ADS.RateLimit,
		BurstSize: cfg.ADS.BurstSize,
		MaxRows:   cfg.ADS.MaxResults,
	}, nil, metrics)

	// Create the optional metadata-inference assist. The client is a no-op
	// when disabled.
	inferrer := inference.NewClient(inference.Config{
		Enabled: cfg.Inference.Enabled,
		APIKey:  cfg.Inference.APIKey,
		Model:   cfg.Inference.Model,
		BaseURL: cfg.Inference.BaseURL,
		Timeout: cfg.Inference.Timeout,
	}, metrics, logger)
	if inferrer.Enabled() {
		logger.Info().Str("model", cfg.Inference.Model).Msg("metadata inference enabled")
	}

	// Create the optional cached full-text store.
	var fulltextStore syncengine.FulltextProvider
	if cfg.Fulltext.Enabled {
		store, err := fulltext.NewStore(fulltext.Config{
			Dir:     cfg.Fulltext.Dir,
			MaxSize: cfg.Fulltext.MaxSize,
		}, logger)
		if err != nil {
			return fmt.Errorf("create fulltext store: %w", err)
		}
		fulltextStore = store
		logger.Info().Str("dir", cfg.Fulltext.Dir).Msg("fulltext store enabled")
	}

	// Create event sinks: the in-process broadcaster always, Kafka when
	// configured.
	broadcaster := events.NewBroadcaster(logger)
	var eventSink syncengine.EventSink = broadcaster
	var kafkaPublisher *events.KafkaPublisher
	if cfg.Events.Enabled {
		kafkaPublisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			BatchTimeout: cfg.Events.BatchTimeout,
		}, logger)
		eventSink = events.Multi{broadcaster, kafkaPublisher}
		logger.Info().
			Strs("brokers", cfg.Events.Brokers).
			Str("topic", cfg.Events.Topic).
			Msg("kafka event publishing enabled")
	}

	// Create the reconciliation engine.
	engine := syncengine.New(syncengine.Deps{
		Client:    adsClient,
		Papers:    paperRepo,
		Registry:  reg,
		Graph:     graph,
		Extractor: extract.NewRegexExtractor(),
		Inferrer:  inferrer,
		Fulltext:  fulltextStore,
		Events:    eventSink,
		Metrics:   metrics,
	}, syncengine.Config{
		WindowWidth: cfg.Sync.WindowWidth,
		WindowDelay: cfg.Sync.WindowDelay,
		BatchSize:   cfg.Sync.BatchSize,
	}, logger)

	// Create the HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    5 * time.Minute, // Long timeout for SSE streaming.
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, engine, paperRepo, reg, graph, broadcaster, db, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("bibsync-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down bibsync-service")

	// Let an in-flight run notice the shutdown.
	if engine.Cancel() {
		logger.Info().Msg("requested cancellation of active sync run")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka publisher close error")
		}
	}

	logger.Info().Msg("bibsync-service stopped")
	return nil
}
