package repository

import (
	"context"

	"github.com/droszt-service/internal/domain"
)

// LiveLocationRepository - документ driver_locations/{uid} для карты диспетчера
type LiveLocationRepository interface {
	Upsert(ctx context.Context, loc domain.LiveLocation) error

	// Get возвращает последнюю точку; domain.ErrLocationNotFound если её нет
	Get(ctx context.Context, uid string) (*domain.LiveLocation, error)

	Delete(ctx context.Context, uid string) error
}

// LocationPublisher - поток живых координат для внешних потребителей
type LocationPublisher interface {
	PublishLocation(ctx context.Context, loc domain.LiveLocation) error
	Close() error
}
