// Package kafka публикует живые координаты водителей в Kafka топик.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

type locationPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewLocationPublisher - ключ сообщения uid, все точки водителя попадают в одну партицию
func NewLocationPublisher(brokers []string, topic string, logger *zap.Logger) repository.LocationPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	logger.Info("Kafka location publisher created",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return &locationPublisher{writer: w, logger: logger}
}

func (p *locationPublisher) PublishLocation(ctx context.Context, loc domain.LiveLocation) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	b, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(loc.UID), Value: b}); err != nil {
		return fmt.Errorf("failed to write location: %w", err)
	}
	return nil
}

func (p *locationPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
