package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/worker"
)

// Responder принимает ответ водителя на запрос heartbeat
type Responder interface {
	Respond(ctx context.Context, uid string, local repository.LocalStore, answer bool) error
}

// Runner - источник ответов, блокируется до отмены ctx
type Runner interface {
	Run(ctx context.Context) error
}

// ResponseWorker доставляет ответы из брокера в HeartbeatUseCase
type ResponseWorker struct {
	*worker.BaseWorker
	responder Responder
	locals    repository.LocalStoreFactory
	runner    Runner
}

func NewResponseWorker(responder Responder, locals repository.LocalStoreFactory, logger *zap.Logger) *ResponseWorker {
	return &ResponseWorker{
		BaseWorker: worker.NewBaseWorker("notification-responses", "", logger),
		responder:  responder,
		locals:     locals,
	}
}

// Attach подключает источник; обычно rabbitmq.ResponseConsumer с Handle в качестве обработчика
func (w *ResponseWorker) Attach(r Runner) {
	w.runner = r
}

// Handle обрабатывает один ответ
func (w *ResponseWorker) Handle(ctx context.Context, resp domain.NotificationResponse) error {
	if resp.UID == "" {
		w.Logger().Warn("response without uid dropped", zap.String("notification_id", resp.NotificationID))
		return nil
	}
	w.Logger().Info("notification answered",
		zap.String("uid", resp.UID),
		zap.String("device", resp.Device),
		zap.String("notification_id", resp.NotificationID),
		zap.Bool("answer", resp.Answer),
	)
	return w.responder.Respond(ctx, resp.UID, w.locals.ForDevice(resp.UID, resp.Device), resp.Answer)
}

func (w *ResponseWorker) Start(ctx context.Context) error {
	if w.runner == nil {
		<-w.StopChan()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.StopChan():
			cancel()
		case <-runCtx.Done():
		}
	}()
	return w.runner.Run(runCtx)
}
