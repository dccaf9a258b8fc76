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
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/powerhawk/common/config"
	"github.com/telhawk-systems/powerhawk/common/database"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/enrich/internal/enricher"
	"github.com/telhawk-systems/powerhawk/enrich/internal/handlers"
	"github.com/telhawk-systems/powerhawk/enrich/internal/registry"
	"github.com/telhawk-systems/powerhawk/enrich/internal/server"
	"github.com/telhawk-systems/powerhawk/enrich/migrations"
	"github.com/telhawk-systems/powerhawk/enrich/pkg/tokens"

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
	).With(logging.Service("enrich"))
	logging.SetDefault(logger)

	slog.Info("Starting Enrich service",
		slog.Int("port", cfg.Server.Port),
		slog.String("policy", cfg.Pipeline.Policy),
		slog.Int("shards", cfg.Stream.Shards),
		slog.String("raw_subject", cfg.Stream.RawSubject),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// JetStream client for the enriched stream
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "powerhawk-enrich",
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       5 * time.Second,
		Logger:        logger.Logger,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer js.Close()

	streamCtx, streamCancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := js.CreateOrUpdateStream(streamCtx, natsclient.TelemetryStream(cfg.Stream.Name, cfg.Stream.SubjectPrefix, cfg.Stream.MaxAge)); err != nil {
		log.Fatalf("Failed to ensure stream %s: %v", cfg.Stream.Name, err)
	}
	streamCancel()

	// Device registry
	var store handlers.RegistryStore
	if cfg.Registry.Enabled {
		pool, err := openRegistry(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open device registry: %v", err)
		}
		defer pool.Close()

		pgStore := registry.NewPostgresStore(pool, cfg.Registry.Table)
		store = pgStore

		if cfg.Redis.Enabled && cfg.Registry.CacheTTL > 0 {
			opts, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				log.Fatalf("Invalid redis.url: %v", err)
			}
			rdb := redis.NewClient(opts)
			defer rdb.Close()
			store = registry.NewCachedStore(pgStore, rdb, cfg.Registry.CacheTTL, logger.Logger)
			slog.Info("Registry cache enabled", slog.Duration("ttl", cfg.Registry.CacheTTL))
		}
	} else {
		slog.Info("Device registry disabled - identity comes from packets only")
	}

	var resolver *registry.Resolver
	if store != nil {
		resolver = registry.NewResolver(store, cfg.Registry.Timeout, logger.Logger)
	}

	stage := enricher.NewStage(enricher.Config{
		Policy:             cfg.Pipeline.EnrichmentPolicy(),
		DefaultThresholdKW: cfg.Pipeline.DefaultUtilThresholdKW,
		SubjectPrefix:      cfg.Stream.SubjectPrefix,
		Shards:             cfg.Stream.Shards,
	}, resolver, js, logger)

	// Raw device uplink
	uplink := handlers.NewUplinkHandler(stage, logger)
	sub, err := js.QueueSubscribe(cfg.Stream.RawSubject, messaging.QueueEnrichWorkers, uplink.Handle)
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", cfg.Stream.RawSubject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// HTTP ingress
	var verifier handlers.TokenVerifier
	if cfg.Auth.DeviceJWTSecret != "" {
		verifier = tokens.NewDeviceTokens(cfg.Auth.DeviceJWTSecret, cfg.Auth.DeviceTokenTTL)
		slog.Info("Device token authentication enabled")
	}

	var registryHandler *handlers.RegistryHandler
	if store != nil {
		registryHandler = handlers.NewRegistryHandler(store, logger)
	}
	router := server.NewRouter(handlers.NewPacketHandler(stage, verifier, js, logger), registryHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Enrich service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}
	if err := js.Drain(); err != nil {
		slog.Warn("NATS drain failed", logging.Error(err))
	}

	slog.Info("Server stopped")
}

func openRegistry(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	conn := cfg.Database.Postgres.ConnString()
	if err := database.MigrateUp(conn, migrations.Set); err != nil {
		return nil, err
	}
	return database.NewPool(ctx, conn)
}
