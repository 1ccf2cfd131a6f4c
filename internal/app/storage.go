package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

// runtimeDependencies: репозитории выбранного хранилища.
type runtimeDependencies struct {
	orders          domain.OrderRepository
	catalog         domain.CatalogRepository
	users           domain.UserRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	// storageChecker задан только для postgres.
	storageChecker func(ctx context.Context) error
	closeFn        func() error
}

func (d runtimeDependencies) close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	var (
		deps runtimeDependencies
		err  error
	)
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps = runtimeDependencies{
			orders:          memory.NewOrderRepository(),
			catalog:         memory.NewCatalogRepository(),
			users:           memory.NewUserRepository(),
			outboxRepo:      memory.NewOutboxRepository(),
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
		}
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		deps, err = initPostgres(ctx, cfg, logger)
		if err != nil {
			return runtimeDependencies{}, err
		}
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.SeedFile != "" {
		if err := loadSeed(ctx, cfg.SeedFile, deps.users, deps.catalog, logger); err != nil {
			return runtimeDependencies{}, errors.Join(err, deps.close())
		}
	}
	return deps, nil
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return runtimeDependencies{}, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	logger.Info("using postgres storage")
	return runtimeDependencies{
		orders:          postgres.NewOrderRepository(store),
		catalog:         postgres.NewCatalogRepository(store),
		users:           postgres.NewUserRepository(store),
		outboxRepo:      postgres.NewOutboxRepository(store),
		timelineRepo:    postgres.NewTimelineRepository(store),
		idempotencyRepo: postgres.NewIdempotencyRepository(store),
		storageChecker:  store.Ping,
		closeFn:         store.Close,
	}, nil
}
