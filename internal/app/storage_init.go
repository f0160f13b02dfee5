package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/orders/internal/storage/postgres"
)

// Демо-данные memory-хранилища: фиксированные идентификаторы, чтобы их можно
// было использовать из curl и loadtest без дополнительной подготовки.
const (
	DemoCustomerID = "demo-customer"
	DemoProductID  = "demo-product"
)

// runtimeDependencies содержит зависимости, выбранные по драйверу хранилища.
type runtimeDependencies struct {
	customers       domain.CustomerRepository
	products        domain.ProductRepository
	repo            domain.OrderRepository
	uow             domain.OrderUnitOfWork
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository

	// storageCheck используется readiness-проверкой.
	storageCheck func() error
	// closeStorage освобождает ресурсы хранилища; может быть nil.
	closeStorage func() error
}

// initRuntimeDependencies собирает зависимости приложения для выбранного
// драйвера хранилища.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		return initMemoryDependencies(cfg, logger), nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initMemoryDependencies(cfg Config, logger *log.Entry) *runtimeDependencies {
	lockTimeout := cfg.LockWaitTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultConfig().LockWaitTimeout
	}
	store := memory.NewStoreWithLockTimeout(lockTimeout)
	seedDemoData(store, logger)

	return &runtimeDependencies{
		customers:       store.Customers(),
		products:        store.Products(),
		repo:            store.Orders(),
		uow:             store.UnitOfWork(),
		outboxRepo:      memory.NewOutboxRepository(),
		timelineRepo:    memory.NewTimelineRepository(),
		idempotencyRepo: memory.NewIdempotencyRepository(),
		storageCheck:    func() error { return nil },
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres storage driver requires a DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.LockWaitTimeout > 0 {
		store.SetLockWaitTimeout(cfg.LockWaitTimeout)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	return &runtimeDependencies{
		customers:       postgres.NewCustomerRepository(store),
		products:        postgres.NewProductRepository(store),
		repo:            postgres.NewOrderRepository(store),
		uow:             postgres.NewUnitOfWork(store),
		outboxRepo:      postgres.NewOutboxRepository(store),
		timelineRepo:    postgres.NewTimelineRepository(store),
		idempotencyRepo: postgres.NewIdempotencyRepository(store),
		storageCheck: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		},
		closeStorage: store.Close,
	}, nil
}

// seedDemoData наполняет memory-хранилище демо-клиентом и демо-товаром.
func seedDemoData(store *memory.Store, logger *log.Entry) {
	now := time.Now().UTC()
	store.PutCustomer(domain.Customer{
		ID:        DemoCustomerID,
		UserID:    "demo",
		CreatedAt: now,
	})
	store.PutProduct(domain.Product{
		ID:        DemoProductID,
		Name:      "Demo Keyboard",
		Price:     decimal.NewFromInt(10000),
		Quantity:  100,
		CreatedAt: now,
		UpdatedAt: now,
	})

	logger.WithFields(log.Fields{
		"customer_id": DemoCustomerID,
		"product_id":  DemoProductID,
	}).Info("memory storage seeded with demo data")
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d.closeStorage == nil {
		return
	}
	if err := d.closeStorage(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
