package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/storage/memory"
	"github.com/vizinhos/orders/internal/storage/postgres"
)

// Dependencies содержит репозитории приложения поверх выбранного хранилища.
type Dependencies struct {
	Orders      domain.OrderRepository
	Stores      domain.StoreRepository
	Users       domain.UserRepository
	Catalog     domain.CatalogRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository

	// Store не nil только для postgres-хранилища.
	Store  *postgres.Store
	Logger *log.Entry
}

// NewDependencies собирает репозитории согласно конфигурации хранилища.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		return newPostgresDependencies(ctx, cfg, logger)
	case StorageDriverMemory, "":
		return newMemoryDependencies(logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}

func newMemoryDependencies(logger *log.Entry) *Dependencies {
	logger.Info("using in-memory storage")
	return &Dependencies{
		Orders:      memory.NewOrderRepository(),
		Stores:      memory.NewStoreRepository(),
		Users:       memory.NewUserRepository(),
		Catalog:     memory.NewCatalogRepository(),
		Timeline:    memory.NewTimelineRepository(),
		Idempotency: memory.NewIdempotencyRepository(),
		Logger:      logger,
	}
}

func newPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres storage requires POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	logger.Info("using postgres storage")
	return &Dependencies{
		Orders:      postgres.NewOrderRepository(store),
		Stores:      postgres.NewStoreRepository(store),
		Users:       postgres.NewUserRepository(store),
		Catalog:     postgres.NewCatalogRepository(store),
		Timeline:    postgres.NewTimelineRepository(store),
		Idempotency: postgres.NewIdempotencyRepository(store),
		Store:       store,
		Logger:      logger,
	}, nil
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() {
	if d == nil || d.Store == nil {
		return
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close postgres store")
	}
}
