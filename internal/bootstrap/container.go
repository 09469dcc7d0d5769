package bootstrap

import (
	"context"
	"log"

	"feature-flags-be/internal/config"
	"feature-flags-be/internal/controller"
	"feature-flags-be/internal/events"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/repository/unitofwork"
	"feature-flags-be/internal/service"
	"feature-flags-be/internal/websocket"
	"feature-flags-be/pkg/cache"
	pkgEvents "feature-flags-be/pkg/events"
	"feature-flags-be/pkg/jobs"
	"feature-flags-be/pkg/metrics"

	pktNats "feature-flags-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	FeatureController controller.IFeatureController
	PublicController  controller.IPublicController

	Logger logger.ILogger

	// Background workers, started by main
	Queue        *jobs.Queue
	WebSocketHub *websocket.Hub

	propagator service.IPropagatorService
	natsPub    *pktNats.Publisher
	natsSub    *pktNats.Subscriber
	rdb        *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	metrics.Register()

	// 2. Infrastructure
	// Redis: shared definitions cache and stream fan-out. Without it every
	// instance caches in memory and streams stay local.
	rdb := connectRedis(cfg.App.RedisURL)

	var definitionsCache cache.DefinitionsCache
	if rdb != nil {
		definitionsCache = cache.NewRedisCache(rdb, cfg.Features.DefinitionsCacheTTL)
	} else {
		definitionsCache = cache.NewMemoryCache(cfg.Features.DefinitionsCacheTTL)
	}

	// NATS
	var (
		natsPub *pktNats.Publisher
		natsSub *pktNats.Subscriber
		bus     events.Bus
		err     error
	)
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			bus = natsPub
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			natsSub = nil
		}
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)

	queue := jobs.NewQueue(sysLogger)

	// 3. Services
	propagatorService := service.NewPropagatorService(
		definitionsCache,
		queue,
		events.NewNatsPublisher(bus, sysLogger),
		wsHub,
		sysLogger,
	)
	featureService := service.NewFeatureService(uowFactory, propagatorService, sysLogger)
	definitionsService := service.NewDefinitionsService(uowFactory, definitionsCache, sysLogger)
	usageService := service.NewUsageService(uowFactory, cfg.Usage.Retention, sysLogger)
	webhookService := service.NewWebhookService(uowFactory, definitionsService, cfg.Features.WebhookTimeout, sysLogger)

	service.RegisterJobs(queue, webhookService, usageService, cfg.Usage.PruneInterval)

	// 4. Controllers
	return &Container{
		FeatureController: controller.NewFeatureController(featureService, usageService),
		PublicController:  controller.NewPublicController(definitionsService, usageService, wsHub, sysLogger),

		Logger:       sysLogger,
		Queue:        queue,
		WebSocketHub: wsHub,

		propagator: propagatorService,
		natsPub:    natsPub,
		natsSub:    natsSub,
		rdb:        rdb,
	}
}

func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: url,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to in-memory cache", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Start runs the background workers until ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if c.natsSub != nil {
		// ephemeral consumer: every instance must see every change
		if err := c.natsSub.Subscribe(pkgEvents.FeatureUpdated, "", c.propagator.HandleFeatureUpdated); err != nil {
			log.Printf("[WARN] Failed to subscribe to %s: %v", pkgEvents.FeatureUpdated, err)
		}
	}

	return c.Queue.Start(ctx)
}

func (c *Container) Close() {
	if err := c.Queue.Close(); err != nil {
		log.Printf("[WARN] Failed to close job queue: %v", err)
	}
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}
