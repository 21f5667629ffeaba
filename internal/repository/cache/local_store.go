package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// localStore - durable хранилище устройства в hash droszt:local:{uid}:device
type localStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

type localStoreFactory struct {
	client *redis.Client
	logger *zap.Logger
}

// NewLocalStoreFactory - хранилища устройств поверх Redis
func NewLocalStoreFactory(r *Redis) repository.LocalStoreFactory {
	return &localStoreFactory{client: r.Client(), logger: r.logger}
}

func (f *localStoreFactory) ForDevice(uid, device string) repository.LocalStore {
	return &localStore{
		client: f.client,
		key:    fmt.Sprintf("droszt:local:{%s}:%s", uid, domain.NormalizeDevice(device)),
		logger: f.logger,
	}
}

func (s *localStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		s.logger.Error("Failed to read local key", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("local get error: %w", err)
	}
	return val, nil
}

func (s *localStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		s.logger.Error("Failed to write local key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("local set error: %w", err)
	}
	return nil
}

func (s *localStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		s.logger.Error("Failed to delete local keys", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("local delete error: %w", err)
	}
	return nil
}
