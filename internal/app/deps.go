package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/config"
	"github.com/rolliki/backend/internal/db"
	"github.com/rolliki/backend/internal/handlers"
	"github.com/rolliki/backend/internal/metrics"
	"github.com/rolliki/backend/internal/middleware"
	"github.com/rolliki/backend/internal/repositories"
	"github.com/rolliki/backend/internal/stages"
	"github.com/rolliki/backend/internal/storage"
)

type stores struct {
	videos      stages.VideoStore
	stages      stages.StageStore
	attachments attachments.Store
	ping        func(ctx context.Context) error
}

func buildStores(pool db.Pool, cfg config.Config) (stores, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		mem := repositories.NewMemoryStore()
		return stores{videos: mem, stages: mem, attachments: mem}, nil
	case config.StorePostgres:
		if pool == nil {
			return stores{}, fmt.Errorf("postgres store requires a connection pool")
		}
		return stores{
			videos:      repositories.NewPostgresVideoRepository(pool),
			stages:      repositories.NewPostgresStageRepository(pool),
			attachments: repositories.NewPostgresAttachmentRepository(pool),
			ping:        pingPool(pool),
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func pingPool(pool db.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()
		return conn.Ping(ctx)
	}
}

func buildObjectStorage(ctx context.Context, cfg config.ObjectStoreConfig) (attachments.ObjectStorage, error) {
	switch cfg.Backend {
	case config.ObjectStoreS3:
		return storage.NewS3Storage(ctx, cfg)
	case config.ObjectStoreLocal:
		return storage.NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the attachment janitor.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	s, err := buildStores(pool, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	objects, err := buildObjectStorage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	janitor := attachments.NewJanitor(objects, attachments.JanitorConfig{
		QueueSize: cfg.Janitor.QueueSize,
		Workers:   cfg.Janitor.Workers,
		Timeout:   cfg.Janitor.Timeout,
	}, logger)

	service := stages.NewService(s.videos, s.stages)
	files := attachments.NewService(s.attachments, objects, s.stages, janitor)

	deps := handlers.Dependencies{
		Stages:         service,
		Videos:         service,
		Files:          files,
		Limiter:        middleware.NewClientRateLimiter(cfg.RateLimit),
		Metrics:        metrics.Handler(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		StoreBackend:   cfg.StoreBackend,
		HealthCheck:    s.ping,
	}

	return deps, janitor.Shutdown, nil
}
