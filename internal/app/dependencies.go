package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/messaging/kafka"
	"github.com/elsoug/orders/internal/service/catalog"
	"github.com/elsoug/orders/internal/service/notifier"
	"github.com/elsoug/orders/internal/service/profile"
	"github.com/elsoug/orders/internal/storage/memory"
	"github.com/elsoug/orders/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	OrderRepo       domain.OrderRepository
	OutboxRepo      domain.OutboxRepository
	IdempotencyRepo domain.IdempotencyRepository
	Catalog         *catalog.MemoryCatalog
	Profiles        *profile.MemoryDirectory
	Publisher       domain.OutboxPublisher
	DLQPublisher    domain.OutboxPublisher
	Store           *postgres.Store
	KafkaProducer   *kafka.Producer
	Logger          *log.Entry
}

// NewDependencies создаёт и инициализирует все зависимости приложения.
// С ELSOUG_POSTGRES_DSN хранение идёт в PostgreSQL, иначе in-memory.
// С KAFKA_BROKERS события outbox публикуются в Kafka, иначе — в лог.
// NOTE: каталог и профили здесь in-memory; в production их заменяют
// клиенты внешних сервисов каталога и профилей.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Catalog:  catalog.NewMemoryCatalog(),
		Profiles: profile.NewMemoryDirectory(),
		Logger:   logger,
	}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.Store = store
		deps.OrderRepo = postgres.NewOrderRepository(store)
		deps.OutboxRepo = postgres.NewOutboxRepository(store)
		deps.IdempotencyRepo = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	} else {
		deps.OrderRepo = memory.NewOrderRepository()
		deps.OutboxRepo = memory.NewOutboxRepository()
		deps.IdempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("in-memory storage initialized")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, falling back to log notifications")
		} else {
			deps.KafkaProducer = producer
			deps.Publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
			deps.DLQPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	if deps.Publisher == nil {
		sink := notifier.NewLogSink(logger.WithField("component", "notifier"))
		deps.Publisher = notifier.NewPublisher(sink, logger.WithField("component", "notifier"))
	}

	if cfg.SeedDemoData {
		seedDemoData(deps)
		logger.Info("demo catalog and profiles seeded")
	}

	return deps, nil
}

// Close освобождает внешние ресурсы.
func (d *Dependencies) Close() {
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// seedDemoData наполняет in-memory каталог и профили демо-данными
// для локальной разработки и нагрузочного тестирования.
func seedDemoData(deps *Dependencies) {
	deps.Catalog.Put(domain.Listing{
		ID:         "demo-tomatoes",
		SellerID:   "demo-seller",
		Type:       domain.OrderTypeProduct,
		Title:      "Tomatoes",
		Unit:       "kg",
		PriceMinor: 2500,
		Currency:   "SDG",
		Available:  true,
	})
	deps.Catalog.Put(domain.Listing{
		ID:         "demo-delivery",
		SellerID:   "demo-seller",
		Type:       domain.OrderTypeService,
		Title:      "Same-day delivery",
		PriceMinor: 10000,
		Currency:   "SDG",
		Available:  true,
	})
	deps.Profiles.Put(domain.Profile{
		ID:      "demo-buyer",
		Name:    "Demo Buyer",
		Address: "Khartoum, Block 12",
		Lat:     15.5007,
		Lng:     32.5599,
	})
}
