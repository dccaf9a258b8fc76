package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/powerhawk/archive/internal/delivery"
	"github.com/telhawk-systems/powerhawk/archive/internal/handlers"
	"github.com/telhawk-systems/powerhawk/archive/internal/sanitizer"
	"github.com/telhawk-systems/powerhawk/archive/internal/server"
	"github.com/telhawk-systems/powerhawk/common/config"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"

	natsclient "github.com/telhawk-systems/powerhawk/common/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("archive"))
	logging.SetDefault(logger)

	slog.Info("Starting Archive service",
		slog.Int("port", cfg.Server.Port),
		slog.String("opensearch_url", cfg.OpenSearch.URL),
		slog.String("index_prefix", cfg.Archive.IndexPrefix),
		slog.Any("required_fields", cfg.Archive.RequiredFields),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := sanitizer.New(cfg.Archive.NumericFields, cfg.Archive.RequiredFields)

	// Bulk store
	sink, err := delivery.NewOpenSearchSink(delivery.Config{
		URL:           cfg.OpenSearch.URL,
		Username:      cfg.OpenSearch.Username,
		Password:      cfg.OpenSearch.Password,
		TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
		IndexPrefix:   cfg.Archive.IndexPrefix,
		ShardCount:    cfg.OpenSearch.ShardCount,
		ReplicaCount:  cfg.OpenSearch.ReplicaCount,
	}, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to create OpenSearch sink: %v", err)
	}
	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := sink.Initialize(initCtx); err != nil {
		slog.Warn("OpenSearch initialization failed, continuing without index template", logging.Error(err))
	}
	initCancel()

	// Stream consumer
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "powerhawk-archive",
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       5 * time.Second,
		Logger:        logger.Logger,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer js.Close()

	setupCtx, setupCancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := js.CreateOrUpdateStream(setupCtx, natsclient.TelemetryStream(cfg.Stream.Name, cfg.Stream.SubjectPrefix, cfg.Stream.MaxAge)); err != nil {
		log.Fatalf("Failed to ensure stream %s: %v", cfg.Stream.Name, err)
	}
	consumerCfg := natsclient.DefaultConsumerConfig(cfg.Archive.Consumer, messaging.EnrichedWildcard(cfg.Stream.SubjectPrefix))
	consumerCfg.AckWait = cfg.Stream.AckWait
	consumerCfg.MaxDeliver = cfg.Stream.MaxDeliver
	if _, err := js.CreateOrUpdateConsumer(setupCtx, cfg.Stream.Name, consumerCfg); err != nil {
		log.Fatalf("Failed to ensure consumer %s: %v", cfg.Archive.Consumer, err)
	}
	consumer, err := js.BatchConsumer(setupCtx, cfg.Stream.Name, cfg.Archive.Consumer, cfg.Archive.BatchSize, cfg.Stream.FetchWait)
	setupCancel()
	if err != nil {
		log.Fatalf("Failed to bind consumer: %v", err)
	}

	archiver := delivery.NewArchiver(s, sink, cfg.Archive.IndexPrefix, logger)

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- consumer.FetchLoop(ctx, archiver.HandleBatch)
	}()

	// HTTP server
	router := server.NewRouter(handlers.New(s, sink, js, logger))
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Archive service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-consumeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Stream consumer stopped", logging.Error(err))
		}
	}

	slog.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}
