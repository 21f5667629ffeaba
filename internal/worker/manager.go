package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// Manager запускает воркеры в отдельных горутинах и останавливает их вместе
type Manager struct {
	workers []Worker
	logger  *zap.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("worker registered", zap.String("name", w.Name()))
}

func (m *Manager) snapshot() []Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Worker(nil), m.workers...)
}

// Start не блокирует; ошибка воркера логируется и не останавливает остальных
func (m *Manager) Start(ctx context.Context) error {
	workers := m.snapshot()
	if len(workers) == 0 {
		return fmt.Errorf("no workers registered")
	}

	m.logger.Info("starting workers", zap.Int("count", len(workers)))
	for _, w := range workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()
			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("worker failed", zap.String("name", w.Name()), zap.Error(err))
			}
		}(w)
	}
	return nil
}

// Stop сигналит всем воркерам и ждёт их не дольше shutdownTimeout
func (m *Manager) Stop() error {
	workers := m.snapshot()
	for _, w := range workers {
		if err := w.Stop(); err != nil {
			m.logger.Error("failed to stop worker", zap.String("name", w.Name()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("workers stopped", zap.Int("count", len(workers)))
		return nil
	case <-time.After(shutdownTimeout):
		m.logger.Warn("workers shutdown timed out", zap.Duration("timeout", shutdownTimeout))
		return fmt.Errorf("workers shutdown timed out after %v", shutdownTimeout)
	}
}
