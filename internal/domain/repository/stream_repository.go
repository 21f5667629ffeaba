package repository

import (
	"context"

	"github.com/droszt-service/internal/domain"
)

// StreamRepository - очередь точек и событий геофенса между API и воркером.
// Доставка at-least-once: сообщение живёт в PEL группы до AckMessages.
type StreamRepository interface {
	// ConsumeBatch отдаёт до maxCount новых сообщений группы, пустой срез если их нет
	ConsumeBatch(ctx context.Context, stream, group, consumer string, maxCount int) ([]domain.StreamMessage, error)

	AckMessages(ctx context.Context, stream, group string, messageIDs []string) error

	// CreateConsumerGroup идемпотентен и создаёт стрим при необходимости
	CreateConsumerGroup(ctx context.Context, stream, group string) error

	// PublishToStream кладёт data JSON-ом в поле "data"
	PublishToStream(ctx context.Context, stream string, data interface{}) error
}
