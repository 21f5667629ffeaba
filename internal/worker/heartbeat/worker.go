package heartbeat

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/worker"
)

// DeviceSource перечисляет установки с живым рантаймом
type DeviceSource interface {
	Active() []domain.Actor
	Local(actor domain.Actor) repository.LocalStore
}

type Checker interface {
	Check(ctx context.Context, uid string, local repository.LocalStore) error
}

// IntegrityEnforcer выкидывает водителя с подменённой геолокацией
type IntegrityEnforcer interface {
	EnforceIntegrity(ctx context.Context, uid string, local repository.LocalStore) error
}

// Worker по расписанию проверяет неактивность всех устройств процесса
type Worker struct {
	*worker.BaseWorker
	devices   DeviceSource
	heartbeat Checker
	integrity IntegrityEnforcer
	schedule  string
}

func NewWorker(devices DeviceSource, heartbeat Checker, integrity IntegrityEnforcer, schedule string, logger *zap.Logger) *Worker {
	return &Worker{
		BaseWorker: worker.NewBaseWorker("heartbeat", "", logger),
		devices:    devices,
		heartbeat:  heartbeat,
		integrity:  integrity,
		schedule:   schedule,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(w.schedule, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid heartbeat schedule %q: %w", w.schedule, err)
	}
	c.Start()
	w.Logger().Info("heartbeat scheduler started", zap.String("schedule", w.schedule))

	select {
	case <-w.StopChan():
	case <-ctx.Done():
	}
	// дождаться текущего прогона
	<-c.Stop().Done()
	return nil
}

// RunOnce - один проход по всем активным устройствам
func (w *Worker) RunOnce(ctx context.Context) {
	if w.IsStopped() {
		return
	}
	actors := w.devices.Active()
	for _, a := range actors {
		if ctx.Err() != nil {
			return
		}
		uid := a.UID
		local := w.devices.Local(a)
		if w.integrity != nil {
			if err := w.integrity.EnforceIntegrity(ctx, uid, local); err != nil {
				w.Logger().Warn("integrity check failed", zap.String("uid", uid), zap.Error(err))
			}
		}
		// после принудительного выхода идентичность устройства стёрта
		if _, err := local.Get(ctx, domain.KeyUserID); err != nil {
			continue
		}
		if err := w.heartbeat.Check(ctx, uid, local); err != nil {
			w.Logger().Warn("heartbeat check failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	w.Logger().Debug("heartbeat pass finished", zap.Int("devices", len(actors)))
}
