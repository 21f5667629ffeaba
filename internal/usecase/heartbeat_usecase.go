package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/observability"
	"github.com/droszt-service/internal/pkg/clock"
)

type HeartbeatConfig struct {
	Interval       time.Duration
	ResponseWindow time.Duration
}

type pendingPrompt struct {
	timer clock.Timer
	seq   uint64
}

// HeartbeatUseCase спрашивает неактивного водителя, работает ли он ещё.
// Нет ответа в окне - принудительный выход.
type HeartbeatUseCase struct {
	notifier repository.Notifier
	signOut  ForcedSignOuter
	clock    clock.Clock
	cfg      HeartbeatConfig
	logger   *zap.Logger

	mu  sync.Mutex
	seq uint64
	// ключ - domain.DeviceKey
	pending map[string]pendingPrompt
}

func NewHeartbeatUseCase(
	notifier repository.Notifier,
	signOut ForcedSignOuter,
	clk clock.Clock,
	cfg HeartbeatConfig,
	logger *zap.Logger,
) *HeartbeatUseCase {
	return &HeartbeatUseCase{
		notifier: notifier,
		signOut:  signOut,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		pending:  make(map[string]pendingPrompt),
	}
}

// Touch обновляет отметку последней активности
func (uc *HeartbeatUseCase) Touch(ctx context.Context, local repository.LocalStore) error {
	return local.Set(ctx, domain.KeyLastActivity, strconv.FormatInt(uc.clock.Now().UnixMilli(), 10))
}

// SetForeground запоминает, что приложение на экране
func (uc *HeartbeatUseCase) SetForeground(ctx context.Context, local repository.LocalStore, foreground bool) error {
	if err := local.Set(ctx, domain.KeyForeground, strconv.FormatBool(foreground)); err != nil {
		return err
	}
	if foreground {
		return uc.Touch(ctx, local)
	}
	return nil
}

// Check - периодическая проверка неактивности
func (uc *HeartbeatUseCase) Check(ctx context.Context, uid string, local repository.LocalStore) error {
	now := uc.clock.Now()
	device := storedDevice(ctx, local)
	key := domain.DeviceKey(uid, device)

	deadline, pending, err := readMillis(ctx, local, domain.KeyHeartbeatPending)
	if err != nil {
		return err
	}
	if pending {
		if !now.Before(deadline) {
			// окно истекло, пока процесс не работал
			uc.expire(ctx, key, uid, local, 0)
			return nil
		}
		uc.mu.Lock()
		_, armed := uc.pending[key]
		uc.mu.Unlock()
		if !armed {
			uc.arm(key, uid, local, deadline.Sub(now))
		}
		return nil
	}

	fg, err := local.Get(ctx, domain.KeyForeground)
	if err != nil && err != domain.ErrKeyNotFound {
		return err
	}
	if fg == "true" {
		return uc.Touch(ctx, local)
	}

	last, ok, err := readMillis(ctx, local, domain.KeyLastActivity)
	if err != nil {
		return err
	}
	if !ok {
		return uc.Touch(ctx, local)
	}
	if now.Sub(last) < uc.cfg.Interval {
		return nil
	}

	deadline = now.Add(uc.cfg.ResponseWindow)
	if err := local.Set(ctx, domain.KeyHeartbeatPending, strconv.FormatInt(deadline.UnixMilli(), 10)); err != nil {
		return err
	}
	uc.arm(key, uid, local, uc.cfg.ResponseWindow)

	uc.logger.Info("heartbeat prompt", zap.String("uid", uid), zap.String("device", device), zap.Time("deadline", deadline))
	if err := uc.notifier.Notify(ctx, domain.Notification{
		ID:          uuid.NewString(),
		UID:         uid,
		Device:      device,
		Kind:        domain.NotifyHeartbeatPrompt,
		Title:       "⚠️ Inaktivitás Figyelmeztetés",
		Body:        fmt.Sprintf("Dolgozol még? Válaszolj %d percen belül!", int(uc.cfg.ResponseWindow.Minutes())),
		Interactive: true,
		CreatedAt:   now,
	}); err != nil {
		observability.NotificationErr.Inc()
		return err
	}
	return nil
}

// Respond - ответ водителя. «Да» сбрасывает таймер и активность, «нет» - выход.
func (uc *HeartbeatUseCase) Respond(ctx context.Context, uid string, local repository.LocalStore, answer bool) error {
	_, pending, err := readMillis(ctx, local, domain.KeyHeartbeatPending)
	if err != nil {
		return err
	}
	uc.cancel(domain.DeviceKey(uid, storedDevice(ctx, local)))

	if answer {
		if err := local.Delete(ctx, domain.KeyHeartbeatPending); err != nil {
			return err
		}
		uc.logger.Info("heartbeat confirmed", zap.String("uid", uid))
		return uc.Touch(ctx, local)
	}
	if !pending {
		return nil
	}
	if err := local.Delete(ctx, domain.KeyHeartbeatPending); err != nil {
		return err
	}
	return uc.signOut.ForcedSignOut(ctx, uid, local, CauseHeartbeatDeclined)
}

// Stop снимает ожидание ответа установки
func (uc *HeartbeatUseCase) Stop(deviceKey string) {
	uc.cancel(deviceKey)
}

func (uc *HeartbeatUseCase) arm(key, uid string, local repository.LocalStore, d time.Duration) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if p, ok := uc.pending[key]; ok {
		p.timer.Stop()
	}
	uc.seq++
	seq := uc.seq
	uc.pending[key] = pendingPrompt{
		seq: seq,
		timer: uc.clock.AfterFunc(d, func() {
			uc.expire(context.Background(), key, uid, local, seq)
		}),
	}
}

func (uc *HeartbeatUseCase) cancel(key string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if p, ok := uc.pending[key]; ok {
		p.timer.Stop()
		delete(uc.pending, key)
	}
}

// expire; seq == 0 - истечение обнаружено при проверке, а не таймером
func (uc *HeartbeatUseCase) expire(ctx context.Context, key, uid string, local repository.LocalStore, seq uint64) {
	uc.mu.Lock()
	p, ok := uc.pending[key]
	if seq != 0 && (!ok || p.seq != seq) {
		uc.mu.Unlock()
		return
	}
	if ok {
		p.timer.Stop()
		delete(uc.pending, key)
	}
	uc.mu.Unlock()

	if seq != 0 {
		// ответ мог прийти через другой процесс и снять флаг
		if _, pending, err := readMillis(ctx, local, domain.KeyHeartbeatPending); err == nil && !pending {
			uc.logger.Debug("heartbeat answered elsewhere", zap.String("uid", uid))
			return
		}
	}

	if err := local.Delete(ctx, domain.KeyHeartbeatPending); err != nil {
		uc.logger.Warn("failed to clear heartbeat flag", zap.String("uid", uid), zap.Error(err))
	}
	uc.logger.Warn("heartbeat not answered", zap.String("uid", uid))
	if err := uc.signOut.ForcedSignOut(ctx, uid, local, CauseHeartbeatTimeout); err != nil {
		uc.logger.Error("heartbeat sign-out failed", zap.String("uid", uid), zap.Error(err))
	}
}

func readMillis(ctx context.Context, local repository.LocalStore, key string) (time.Time, bool, error) {
	raw, err := local.Get(ctx, key)
	if err == domain.ErrKeyNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}
