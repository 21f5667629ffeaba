// Package rabbitmq доставляет уведомления водителям и принимает их ответы.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// Notifier публикует уведомления в durable очередь
type Notifier struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ repository.Notifier = (*Notifier)(nil)

func NewNotifier(url, queue string, logger *zap.Logger) *Notifier {
	return &Notifier{url: url, queue: queue, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.channelLocked()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", n.queue, false, false, pub); err != nil {
		// следующая попытка откроет соединение заново
		n.resetLocked()
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Debug("notification published",
		zap.String("uid", msg.UID),
		zap.String("kind", string(msg.Kind)),
	)
	return nil
}

func (n *Notifier) channelLocked() (*amqp.Channel, error) {
	if n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}
	n.resetLocked()

	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", n.queue, err)
	}

	n.conn, n.ch = conn, ch
	return ch, nil
}

func (n *Notifier) resetLocked() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked()
	return nil
}
