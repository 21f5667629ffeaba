package repository

import (
	"context"

	"github.com/droszt-service/internal/domain"
)

// PositionProvider - позиция устройства в foreground режиме
type PositionProvider interface {
	RequestForegroundPermission(ctx context.Context) (bool, error)
	RequestBackgroundPermission(ctx context.Context) (bool, error)

	// Watch отдаёт точки до отмены ctx
	Watch(ctx context.Context, opts domain.WatchOptions) (<-chan domain.LocationSample, error)
}

// TaskScheduler - регистрация фоновых задач ОС: периодические точки и нативный геофенс.
// Задачи регистрируются на установку, device - domain.DeviceKey.
type TaskScheduler interface {
	StartLocationUpdates(ctx context.Context, device, task string, opts domain.WatchOptions) error
	StartGeofencing(ctx context.Context, device, task string, regions []domain.CircularRegion) error

	// Stop* возвращают domain.ErrTaskNotFound, если задача не зарегистрирована
	StopLocationUpdates(ctx context.Context, device, task string) error
	StopGeofencing(ctx context.Context, device, task string) error

	IsRegistered(ctx context.Context, device, task string) (bool, error)

	// Regions - зарегистрированные круги устройства
	Regions(ctx context.Context, device, task string) ([]domain.CircularRegion, error)
}
