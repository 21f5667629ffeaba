package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/config"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// Redis - общее подключение для документов очередей, стримов и хранилищ устройств
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis ждёт Redis до connectAttempts попыток: в compose API часто стартует раньше
func NewRedis(cfg *config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MinIdleConns: 2,
		// блокирующие XREADGROUP и pub/sub держат соединение дольше ReadTimeout по умолчанию
		ReadTimeout: 10 * time.Second,
	})

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			break
		}
		logger.Warn("Redis not ready",
			zap.String("addr", addr),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff * time.Duration(attempt))
		}
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info("Redis connected", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return &Redis{client: client, logger: logger}, nil
}

// NewRedisFromClient оборачивает готовый клиент (тесты)
func NewRedisFromClient(client *redis.Client, logger *zap.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Close() error {
	r.logger.Info("Closing Redis connection")
	return r.client.Close()
}

// Health для /healthz
func (r *Redis) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Client() *redis.Client {
	return r.client
}
