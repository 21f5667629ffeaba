// Package app собирает зависимости сервиса из конфигурации.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/config"
	"github.com/droszt-service/internal/delivery/ops"
	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/infrastructure/kafka"
	"github.com/droszt-service/internal/infrastructure/notify"
	"github.com/droszt-service/internal/infrastructure/rabbitmq"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/repository/cache"
	"github.com/droszt-service/internal/repository/memory"
	"github.com/droszt-service/internal/repository/postgres"
	redisRepo "github.com/droszt-service/internal/repository/redis"
	"github.com/droszt-service/internal/repository/sqlite"
	"github.com/droszt-service/internal/usecase"
	"github.com/droszt-service/internal/zone"
)

const (
	// revocationTTL покрывает срок жизни любого access токена
	revocationTTL = 7 * 24 * time.Hour
	// presenceMaxAge - насколько старой может быть живая координата при check-in
	presenceMaxAge = 2 * time.Minute
)

// Container - общий граф зависимостей для cmd/api и cmd/worker
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Clock    clock.Clock
	Registry *zone.Registry

	Redis *cache.Redis
	DB    *postgres.DB

	Streams     repository.StreamRepository
	Docs        repository.DocumentRepository
	Profiles    repository.ProfileRepository
	Live        repository.LiveLocationRepository
	Scheduler   repository.TaskScheduler
	Locals      repository.LocalStoreFactory
	Positions   *memory.PositionHub
	Notifier    repository.Notifier
	Revocations *cache.TokenRevocation
	Publisher   repository.LocationPublisher

	Queue     *usecase.QueueUseCase
	Notes     *usecase.NotesUseCase
	SignOut   *usecase.SignOutUseCase
	Heartbeat *usecase.HeartbeatUseCase
	Guard     *usecase.SessionGuard
	Tracking  *usecase.TrackingUseCase
	Devices   *usecase.DeviceManager

	closers []func() error
}

// New подключается к Redis и PostgreSQL и собирает use cases
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log, Clock: clock.New()}

	registry, err := loadRegistry(cfg.Storage.ZonesFile)
	if err != nil {
		return nil, err
	}
	c.Registry = registry

	c.Redis, err = cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.closers = append(c.closers, c.Redis.Close)

	c.DB, err = postgres.New(&cfg.Database, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	c.closers = append(c.closers, c.DB.Close)

	if err := c.DB.Migrate(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
	}

	client := c.Redis.Client()
	c.Streams = redisRepo.NewStreamRepository(client, log)
	c.Docs = redisRepo.NewDocumentRepository(client, log)
	c.Scheduler = redisRepo.NewTaskScheduler(client, log)
	c.Profiles = postgres.NewProfileRepository(c.DB, log)
	c.Live = postgres.NewLiveLocationRepository(c.DB, log)
	c.Revocations = cache.NewTokenRevocation(c.Redis, revocationTTL)
	c.Positions = memory.NewPositionHub()

	if c.Locals, err = c.localStores(); err != nil {
		c.Close()
		return nil, err
	}
	c.Notifier = c.notifier()
	c.Publisher = c.publisher()

	c.wire()
	return c, nil
}

func loadRegistry(path string) (*zone.Registry, error) {
	if path == "" {
		return zone.Default()
	}
	reg, err := zone.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load zones from %s: %w", path, err)
	}
	return reg, nil
}

func (c *Container) localStores() (repository.LocalStoreFactory, error) {
	switch c.Config.Storage.LocalDriver {
	case "redis":
		return cache.NewLocalStoreFactory(c.Redis), nil
	case "memory":
		return memory.NewLocalStoreFactory(), nil
	case "sqlite":
		store, err := sqlite.Open(c.Config.Storage.SQLitePath, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open device store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown LOCAL_STORE_DRIVER %q", c.Config.Storage.LocalDriver)
	}
}

func (c *Container) notifier() repository.Notifier {
	logNotifier := notify.NewLogNotifier(c.Logger)
	if !c.Config.RabbitMQ.Enabled {
		return logNotifier
	}
	rmq := rabbitmq.NewNotifier(c.Config.RabbitMQ.URL, c.Config.RabbitMQ.NotificationQueue, c.Logger)
	c.closers = append(c.closers, rmq.Close)
	return notify.NewMulti(c.Logger, logNotifier, rmq)
}

func (c *Container) publisher() repository.LocationPublisher {
	var p repository.LocationPublisher
	switch c.Config.Tracking.LiveLocationFeed {
	case "kafka":
		if !c.Config.Kafka.Enabled || len(c.Config.Kafka.Brokers) == 0 {
			c.Logger.Warn("kafka live feed requested but kafka is disabled")
			return nil
		}
		p = kafka.NewLocationPublisher(c.Config.Kafka.Brokers, c.Config.Kafka.LocationTopic, c.Logger)
	case "stream":
		p = redisRepo.NewStreamLocationPublisher(c.Streams)
	default:
		return nil
	}
	c.closers = append(c.closers, p.Close)
	return p
}

func (c *Container) wire() {
	cfg := c.Config
	log := c.Logger

	presence := usecase.NewLivePresence(c.Live, c.Registry, c.Clock, presenceMaxAge)

	c.Queue = usecase.NewQueueUseCase(c.Docs, c.Profiles, c.Registry, presence, c.Clock, log)
	c.Notes = usecase.NewNotesUseCase(c.Docs, log)
	c.SignOut = usecase.NewSignOutUseCase(c.Queue, c.Live, c.Notifier, c.Revocations, c.Clock, log)
	c.Heartbeat = usecase.NewHeartbeatUseCase(c.Notifier, c.SignOut, c.Clock, usecase.HeartbeatConfig{
		Interval:       cfg.Heartbeat.Interval,
		ResponseWindow: cfg.Heartbeat.ResponseWindow,
	}, log)
	c.Guard = usecase.NewSessionGuard(c.Profiles, c.SignOut, c.Clock, cfg.Session.SettleDelay, log)

	c.Tracking = usecase.NewTrackingUseCase(
		c.Queue,
		c.Live,
		c.Scheduler,
		c.Positions,
		c.Notifier,
		c.Registry,
		c.Clock,
		usecase.TrackingConfig{
			GracePeriod: cfg.Tracking.GracePeriod,
			LiveMaxAge:  presenceMaxAge,
			Watch: domain.WatchOptions{
				Accuracy:  domain.AccuracyBalanced,
				Interval:  cfg.Tracking.Interval,
				DistanceM: cfg.Tracking.DistanceM,
			},
		},
		log,
	).WithHeartbeat(c.Heartbeat)
	if c.Publisher != nil {
		c.Tracking.WithPublisher(c.Publisher)
	}

	c.Devices = usecase.NewDeviceManager(
		c.Locals,
		c.Positions,
		c.Registry,
		c.Queue,
		c.Heartbeat,
		c.Guard,
		c.SignOut,
		c.Notifier,
		presence,
		c.Clock,
		usecase.DeviceConfig{
			EnforceCheckin: cfg.Geofence.EnforceCheckin,
			Geofence: usecase.GeofenceConfig{
				GracePeriod:  cfg.Geofence.GracePeriod,
				AutoCheckout: cfg.Geofence.AutoCheckout,
				Watch: domain.WatchOptions{
					Accuracy:  domain.AccuracyHigh,
					Interval:  cfg.Geofence.SampleInterval,
					DistanceM: cfg.Geofence.SampleDistanceM,
				},
			},
		},
		log,
	)
	c.Tracking.WithSessions(c.Devices)
	c.Queue.Observe(c.Tracking)
}

// ResponseConsumer - потребитель ответов на уведомления; nil если RabbitMQ выключен
func (c *Container) ResponseConsumer(handler rabbitmq.ResponseHandler) *rabbitmq.ResponseConsumer {
	if !c.Config.RabbitMQ.Enabled {
		return nil
	}
	return rabbitmq.NewResponseConsumer(c.Config.RabbitMQ.URL, c.Config.RabbitMQ.ResponseQueue, handler, c.Logger)
}

// HealthChecks - зависимости для /healthz
func (c *Container) HealthChecks() map[string]ops.HealthCheck {
	return map[string]ops.HealthCheck{
		"redis":     c.Redis.Health,
		"postgres":  c.DB.Health,
		"documents": c.Queue.CheckDocuments,
	}
}

// Close освобождает ресурсы в обратном порядке
func (c *Container) Close() {
	if c.Devices != nil {
		c.Devices.Shutdown()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Error("failed to close resource", zap.Error(err))
		}
	}
	c.closers = nil
}
