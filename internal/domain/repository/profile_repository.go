package repository

import (
	"context"

	"github.com/droszt-service/internal/domain"
)

// ProfileRepository - удалённые профили водителей
type ProfileRepository interface {
	// Get возвращает профиль; domain.ErrProfileNotFound если его нет
	Get(ctx context.Context, uid string) (*domain.Profile, error)

	// SetSessionToken записывает токен активной сессии
	SetSessionToken(ctx context.Context, uid string, token int64) error

	// Watch отдаёт профиль при каждом изменении; канал закрывается по ctx
	Watch(ctx context.Context, uid string) (<-chan domain.Profile, error)
}
