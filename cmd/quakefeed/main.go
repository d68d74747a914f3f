package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quake-feed-service/internal/adapter/http"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/filestore"
	kafkaadapter "github.com/couchcryptid/quake-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/postgres"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/filters"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/refresh"
	"github.com/couchcryptid/quake-feed-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openFilterStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open filter storage", "error", err, "backend", cfg.FilterStorage)
		os.Exit(1)
	}
	defer closeStorage()

	var opts []store.Option

	// Reverse geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		opts = append(opts, store.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, cfg.MapboxCacheTTL, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		opts = append(opts, store.WithPublisher(publisher))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	fm := filters.NewManager(ctx, storage, logger, metrics)
	feed := usgs.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger)
	events := store.New(feed, fm, logger, metrics, opts...)
	scheduler := refresh.New(events, cfg.RefreshInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, events, httpadapter.FocusConfig{
		MaxAttempts: cfg.FocusMaxAttempts,
		RetryDelay:  cfg.FocusRetryDelay,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func openFilterStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (filters.Storage, func(), error) {
	switch cfg.FilterStorage {
	case config.StoragePostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("postgres close error", "error", err)
			}
		}, nil
	case config.StorageMemory:
		return filters.NewMemoryStorage(), func() {}, nil
	default:
		s, err := filestore.New(cfg.FilterStorageDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}
