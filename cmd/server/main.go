package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/satellite-climate-service/internal/adapter/csvbackup"
	"github.com/couchcryptid/satellite-climate-service/internal/adapter/dynamo"
	"github.com/couchcryptid/satellite-climate-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/satellite-climate-service/internal/adapter/kafka"
	"github.com/couchcryptid/satellite-climate-service/internal/adapter/mapbox"
	"github.com/couchcryptid/satellite-climate-service/internal/adapter/postgres"
	"github.com/couchcryptid/satellite-climate-service/internal/adapter/sqlite"
	"github.com/couchcryptid/satellite-climate-service/internal/climate"
	"github.com/couchcryptid/satellite-climate-service/internal/config"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	"github.com/couchcryptid/satellite-climate-service/internal/observability"
	"github.com/couchcryptid/satellite-climate-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, normals, err := loadReferenceData(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load reference catalog", "error", err)
		os.Exit(1)
	}
	metrics.CatalogStations.Set(float64(catalog.Len()))
	if catalog.Len() == 0 {
		logger.Warn("reference catalog is empty, station resolution will fail", "path", cfg.CatalogPath)
	}

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	if err := store.UpsertNormals(ctx, normals); err != nil {
		logger.Error("failed to seed climate normals", "error", err)
		os.Exit(1)
	}

	locations, err := locationRepository(ctx, cfg, store)
	if err != nil {
		logger.Error("failed to set up location store", "error", err, "backend", cfg.LocationBackend)
		os.Exit(1)
	}
	logger.Info("location store ready", "backend", cfg.LocationBackend)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	svc := climate.NewService(catalog, climate.Repositories{
		Locations:    locations,
		Observations: store,
		Normals:      store,
	}, geocoder, logger, metrics)

	readiness := httpadapter.Readiness{svc, store}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.IngestEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc, logger)
		backup := csvbackup.NewWriter(cfg.BackupDir, clockwork.NewRealClock())

		p = pipeline.New(reader, transformer, pipeline.Loaders{store, writer}, logger, metrics, cfg.BatchSize,
			pipeline.WithBackup(backup))
		readiness = append(readiness, p)
	} else {
		logger.Info("observation ingest disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, readiness, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadReferenceData provisions the SQLite catalog from the seed on first
// start, then loads the stations and normals.
func loadReferenceData(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*domain.Catalog, []domain.ClimateNormal, error) {
	needs, err := sqlite.NeedsProvisioning(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	if needs {
		seed, err := sqlite.LoadSeed(cfg.CatalogSeed)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Provision(ctx, cfg.CatalogPath, seed, logger); err != nil {
			return nil, nil, err
		}
	}

	catalog, err := sqlite.LoadCatalog(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	normals, err := sqlite.LoadNormals(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("reference catalog loaded", "path", cfg.CatalogPath, "stations", catalog.Len(), "normals", len(normals))
	return catalog, normals, nil
}

func locationRepository(ctx context.Context, cfg *config.Config, store *postgres.Store) (climate.LocationRepository, error) {
	switch cfg.LocationBackend {
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return dynamo.NewLocationRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoLocationsTable), nil
	default:
		return store, nil
	}
}
