package bootstrap

import (
	"context"
	"log"

	"notification-hub-be/internal/config"
	"notification-hub-be/internal/handler"
	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/internal/realtime"
	"notification-hub-be/internal/repository"
	"notification-hub-be/internal/repository/implementation"
	"notification-hub-be/internal/repository/memory"
	"notification-hub-be/internal/service"
	pktNats "notification-hub-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const domainEventTopic = "notification.events"

type Container struct {
	Logger logger.ILogger

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService
	NatsSubscriber      *pktNats.Subscriber

	NotificationHandler *handler.NotificationHandler
	Registry            *realtime.Registry

	closers []func()
}

// NewContainer wires the application. db may be nil when the memory storage
// driver is selected.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	notifLogger := logger.NewIsolatedLogger(cfg.App.NotificationLogFilePath)
	c := &Container{Logger: sysLogger}

	// 1. Storage
	var (
		notifRepo repository.NotificationRepository
		readRepo  repository.NotificationReadRepository
	)
	if cfg.App.StorageDriver == config.StorageDriverMemory || db == nil {
		log.Printf("[INFO] Using in-memory notification store")
		store := memory.NewNotificationStore()
		notifRepo, readRepo = store.Notifications(), store.Reads()
	} else {
		notifRepo = implementation.NewNotificationRepository(db)
		readRepo = implementation.NewNotificationReadRepository(db)
	}

	// 2. Idempotency keys: Redis when reachable, process memory otherwise
	idemRepo := memory.NewIdempotencyRepository(cfg.Notification.IdempotencyTTL)
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Idempotency keys stay in memory", err)
			_ = rdb.Close()
		} else {
			idemRepo = implementation.NewRedisIdempotencyRepository(rdb)
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}

	// 3. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	var relay service.EventRelay
	if cfg.App.NatsURL != "" {
		nc, js, err := pktNats.Connect(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS: %v", err)
		} else {
			natsPub := pktNats.NewPublisher(nc, js)
			relay = natsPub
			c.NatsSubscriber = pktNats.NewSubscriber(nc, js)
			c.closers = append(c.closers, func() { drainNats(nc) })
		}
	}

	publisherService := service.NewPublisherService(domainEventTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, domainEventTopic, relay, notifLogger)

	// 4. Realtime
	c.Registry = realtime.NewRegistry(realtime.Options{
		Shards:     cfg.Realtime.Shards,
		BufferSize: cfg.Realtime.BufferSize,
		Timeout:    cfg.Realtime.ChannelTimeout,
	}, notifLogger)

	// 5. Services
	c.NotificationService = service.NewNotificationService(
		notifRepo,
		readRepo,
		c.Registry, // Registry implements NotificationDelivery
		publisherService,
		notifLogger,
		service.PageOptions{
			DefaultSize: cfg.Notification.DefaultPageSize,
			MaxSize:     cfg.Notification.MaxPageSize,
		},
	)
	idempotencyService := service.NewIdempotencyService(idemRepo, cfg.Notification.IdempotencyTTL, sysLogger)

	// 6. Handlers
	c.NotificationHandler = handler.NewNotificationHandler(
		c.NotificationService,
		idempotencyService,
		c.Registry,
		cfg.App.JwtSecret,
		cfg.Realtime.Heartbeat,
		notifLogger,
	)

	return c
}

// Close releases external connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func drainNats(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		nc.Close()
	}
}
