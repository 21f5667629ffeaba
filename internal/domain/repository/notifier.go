package repository

import (
	"context"

	"github.com/droszt-service/internal/domain"
)

// Notifier доставляет локальные уведомления на устройство
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
