package worker

import "context"

// Worker - фоновая задача процесса: heartbeat по cron, разбор стримов GPS, ответы на уведомления
type Worker interface {
	// Start блокирует до Stop или отмены ctx
	Start(ctx context.Context) error
	// Stop только сигналит; дождаться выхода - забота Manager
	Stop() error
	Name() string
}
