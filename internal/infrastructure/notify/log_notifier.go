// Package notify - доставка уведомлений без брокера.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier пишет уведомления в лог; используется когда RabbitMQ выключен
func NewLogNotifier(logger *zap.Logger) repository.Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.logger.Info("notification",
		zap.String("uid", msg.UID),
		zap.String("kind", string(msg.Kind)),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Bool("interactive", msg.Interactive),
	)
	return nil
}

type multiNotifier struct {
	targets []repository.Notifier
	logger  *zap.Logger
}

// NewMulti доставляет уведомление всем получателям; ошибка одного не мешает остальным
func NewMulti(logger *zap.Logger, targets ...repository.Notifier) repository.Notifier {
	return &multiNotifier{targets: targets, logger: logger}
}

func (m *multiNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	var firstErr error
	for _, t := range m.targets {
		if err := t.Notify(ctx, msg); err != nil {
			m.logger.Warn("notification delivery failed", zap.String("uid", msg.UID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
