package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// taskRegistration - то, что устройство зарегистрировало в ОС
type taskRegistration struct {
	Options *domain.WatchOptions    `json:"options,omitempty"`
	Regions []domain.CircularRegion `json:"regions,omitempty"`
}

type taskScheduler struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTaskScheduler хранит регистрации фоновых задач в hash droszt:device:{uid}:tasks
func NewTaskScheduler(client *redis.Client, logger *zap.Logger) repository.TaskScheduler {
	return &taskScheduler{
		client: client,
		logger: logger,
	}
}

func tasksKey(uid string) string {
	return fmt.Sprintf("droszt:device:{%s}:tasks", uid)
}

func (s *taskScheduler) StartLocationUpdates(ctx context.Context, uid, task string, opts domain.WatchOptions) error {
	return s.put(ctx, uid, task, taskRegistration{Options: &opts})
}

func (s *taskScheduler) StartGeofencing(ctx context.Context, uid, task string, regions []domain.CircularRegion) error {
	return s.put(ctx, uid, task, taskRegistration{Regions: regions})
}

func (s *taskScheduler) StopLocationUpdates(ctx context.Context, uid, task string) error {
	return s.remove(ctx, uid, task)
}

func (s *taskScheduler) StopGeofencing(ctx context.Context, uid, task string) error {
	return s.remove(ctx, uid, task)
}

func (s *taskScheduler) IsRegistered(ctx context.Context, uid, task string) (bool, error) {
	ok, err := s.client.HExists(ctx, tasksKey(uid), task).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check task %s: %w", task, err)
	}
	return ok, nil
}

func (s *taskScheduler) Regions(ctx context.Context, uid, task string) ([]domain.CircularRegion, error) {
	raw, err := s.client.HGet(ctx, tasksKey(uid), task).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", task, err)
	}

	var reg taskRegistration
	if err := json.Unmarshal([]byte(raw), &reg); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", task, err)
	}
	return reg.Regions, nil
}

func (s *taskScheduler) put(ctx context.Context, uid, task string, reg taskRegistration) error {
	raw, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task, err)
	}
	if err := s.client.HSet(ctx, tasksKey(uid), task, raw).Err(); err != nil {
		s.logger.Error("Failed to register task",
			zap.String("uid", uid),
			zap.String("task", task),
			zap.Error(err))
		return fmt.Errorf("failed to register task %s: %w", task, err)
	}
	s.logger.Info("Background task registered", zap.String("uid", uid), zap.String("task", task))
	return nil
}

func (s *taskScheduler) remove(ctx context.Context, uid, task string) error {
	n, err := s.client.HDel(ctx, tasksKey(uid), task).Result()
	if err != nil {
		return fmt.Errorf("failed to unregister task %s: %w", task, err)
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	s.logger.Info("Background task unregistered", zap.String("uid", uid), zap.String("task", task))
	return nil
}
