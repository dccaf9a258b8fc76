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

	"github.com/telhawk-systems/powerhawk/common/config"
	"github.com/telhawk-systems/powerhawk/common/database"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/writer/internal/handlers"
	"github.com/telhawk-systems/powerhawk/writer/internal/reaper"
	"github.com/telhawk-systems/powerhawk/writer/internal/repository"
	"github.com/telhawk-systems/powerhawk/writer/internal/server"
	"github.com/telhawk-systems/powerhawk/writer/internal/writer"
	"github.com/telhawk-systems/powerhawk/writer/migrations"

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
	).With(logging.Service("writer"))
	logging.SetDefault(logger)

	policy := cfg.Pipeline.EnrichmentPolicy()
	slog.Info("Starting Writer service",
		slog.Int("port", cfg.Server.Port),
		slog.String("policy", string(policy)),
		slog.Int("num_buckets", cfg.Pipeline.NumBuckets),
		slog.Int("ttl_hours", cfg.Pipeline.TTLHours),
		slog.Bool("require_kw", cfg.Writer.RequireKW(policy)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	connString := cfg.Database.Postgres.ConnString()
	if err := database.MigrateUp(connString, migrations.Set); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	pool, err := database.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repo := repository.NewPostgresRepository(pool, cfg.Store.TimeSeriesTable)

	// TTL reaper
	if cfg.Reaper.Enabled {
		r := reaper.New(repo, cfg.Reaper.Interval, cfg.Reaper.BatchLimit, logger.Logger)
		r.Start()
		defer r.Stop()
		slog.Info("TTL reaper enabled", slog.Duration("interval", cfg.Reaper.Interval))
	}

	// Stream consumer
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "powerhawk-writer",
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
	consumerCfg := natsclient.DefaultConsumerConfig(cfg.Writer.Consumer, messaging.EnrichedWildcard(cfg.Stream.SubjectPrefix))
	consumerCfg.AckWait = cfg.Stream.AckWait
	consumerCfg.MaxDeliver = cfg.Stream.MaxDeliver
	if _, err := js.CreateOrUpdateConsumer(setupCtx, cfg.Stream.Name, consumerCfg); err != nil {
		log.Fatalf("Failed to ensure consumer %s: %v", cfg.Writer.Consumer, err)
	}
	consumer, err := js.BatchConsumer(setupCtx, cfg.Stream.Name, cfg.Writer.Consumer, cfg.Stream.BatchSize, cfg.Stream.FetchWait)
	setupCancel()
	if err != nil {
		log.Fatalf("Failed to bind consumer: %v", err)
	}

	w := writer.New(writer.Config{
		Policy:     policy,
		NumBuckets: cfg.Pipeline.NumBuckets,
		Retention:  cfg.Pipeline.Retention(),
		RequireKW:  cfg.Writer.RequireKW(policy),
	}, repo, logger)

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- consumer.FetchLoop(ctx, w.HandleBatch)
	}()

	// HTTP server
	router := server.NewRouter(handlers.New(repo, cfg.Pipeline.NumBuckets, pool, js, logger))
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Writer service listening", slog.String("addr", srv.Addr))
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
