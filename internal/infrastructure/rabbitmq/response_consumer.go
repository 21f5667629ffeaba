package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
)

// ResponseHandler обрабатывает ответ водителя на уведомление
type ResponseHandler func(ctx context.Context, resp domain.NotificationResponse) error

// ResponseConsumer читает ответы из очереди и переподключается с backoff
type ResponseConsumer struct {
	url     string
	queue   string
	handler ResponseHandler
	logger  *zap.Logger
}

func NewResponseConsumer(url, queue string, handler ResponseHandler, logger *zap.Logger) *ResponseConsumer {
	return &ResponseConsumer{url: url, queue: queue, handler: handler, logger: logger}
}

// Run блокируется до отмены ctx
func (c *ResponseConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("response consumer: dial failed",
				zap.Error(err),
				zap.Duration("retry_in", backoff),
			)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("response consumer: loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *ResponseConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("response consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			var resp domain.NotificationResponse
			if err := json.Unmarshal(d.Body, &resp); err != nil {
				c.logger.Error("response consumer: bad payload", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			if err := c.handler(ctx, resp); err != nil {
				c.logger.Error("response consumer: handler failed",
					zap.String("uid", resp.UID),
					zap.Error(err),
				)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
