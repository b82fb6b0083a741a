package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/SteelMorgan/log-tailer/internal/clickhouse"
	"github.com/SteelMorgan/log-tailer/internal/config"
	"github.com/SteelMorgan/log-tailer/internal/filetail"
	"github.com/SteelMorgan/log-tailer/internal/observability"
	"github.com/SteelMorgan/log-tailer/internal/offset"
	"github.com/SteelMorgan/log-tailer/internal/retry"
	"github.com/SteelMorgan/log-tailer/internal/service"
	"github.com/SteelMorgan/log-tailer/internal/writer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	closeLog := observability.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer closeLog()

	log.Info().
		Str("version", version).
		Int("targets", len(cfg.Targets)).
		Str("sink", cfg.Sink).
		Msg("Starting log tailer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracer (if enabled)
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "log-tailer",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdownTracer(context.Background())
	}

	store, err := offset.NewLRUStore(cfg.OffsetCapacity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create offset store")
	}
	tailer := filetail.NewTailer(afero.NewOsFs(), store)

	lineWriter, closeSink, err := newWriter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("sink", cfg.Sink).Msg("Failed to create writer")
	}
	defer closeSink()

	pollerSvc, err := service.NewPollerService(cfg, tailer, lineWriter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create poller service")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := pollerSvc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	log.Info().Str("run_id", pollerSvc.RunID()).Msg("Poller service started successfully")

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Info().Msg("Received shutdown signal")
	case err := <-errChan:
		log.Error().Err(err).Msg("Poller service error")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	cancel()

	if err := pollerSvc.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	log.Info().Int("tracked_files", store.Len()).Msg("Poller service stopped")
}

// newWriter builds the configured sink. The returned func releases sink resources.
func newWriter(ctx context.Context, cfg *config.Config) (writer.LineWriter, func(), error) {
	switch cfg.Sink {
	case config.SinkStdout:
		return writer.NewStdoutWriter(os.Stdout, cfg.PrintPaths), func() {}, nil
	case config.SinkClickHouse:
		retryCfg := retry.DefaultConfig()
		retryCfg.MaxAttempts = cfg.RetryMaxAttempts
		retryCfg.InitialDelay = cfg.RetryInitialDelay
		retryCfg.MaxDelay = cfg.RetryMaxDelay

		client, err := clickhouse.NewClient(ctx, clickhouse.Options{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Retry:    retryCfg,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := client.EnsureSchema(ctx, cfg.RetentionDays); err != nil {
			client.Close()
			return nil, nil, err
		}

		w := writer.NewClickHouseWriter(client, writer.BatchConfig{
			MaxSize:      cfg.BatchMaxSize,
			FlushTimeout: cfg.BatchFlushTimeout,
		})
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close ClickHouse client")
			}
		}
		return w, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink: %s", cfg.Sink)
	}
}
