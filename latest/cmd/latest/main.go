package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/powerhawk/common/config"
	"github.com/telhawk-systems/powerhawk/common/database"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/latest/internal/changefeed"
	"github.com/telhawk-systems/powerhawk/latest/internal/handlers"
	"github.com/telhawk-systems/powerhawk/latest/internal/maintainer"
	"github.com/telhawk-systems/powerhawk/latest/internal/repository"
	"github.com/telhawk-systems/powerhawk/latest/internal/server"
	"github.com/telhawk-systems/powerhawk/latest/migrations"
)

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

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
	).With(logging.Service("latest"))
	logging.SetDefault(logger)

	slog.Info("Starting Latest service",
		slog.Int("port", cfg.Server.Port),
		slog.String("policy", cfg.Pipeline.Policy),
		slog.String("backend", cfg.Store.LatestBackend),
		slog.String("channel", cfg.Store.ChangeChannel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connString := cfg.Database.Postgres.ConnString()

	var (
		store repository.LatestStore
		ping  handlers.Pinger
	)
	switch cfg.Store.LatestBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis.url: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		store, ping = repository.NewRedisStore(client), redisPinger{client}
	default:
		if err := database.MigrateUp(connString, migrations.Set); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		pool, err := database.NewPool(ctx, connString)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		store, ping = repository.NewPostgresStore(pool, cfg.Store.LatestTable), pool
	}

	m := maintainer.New(store, cfg.Pipeline.EnrichmentPolicy(), logger)
	listener := changefeed.NewListener(connString, cfg.Store.ChangeChannel, cfg.Latest.MaxBatch, cfg.Latest.MaxWait, logger.Logger)

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := listener.Run(ctx, m.Handle); err != nil {
			slog.Error("Change feed stopped", logging.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handlers.New(store, ping, logger)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Latest service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	cancel()
	<-feedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}
