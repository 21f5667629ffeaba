package usecase

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/observability"
	"github.com/droszt-service/internal/pkg/clock"
)

// SignOutCause - причина выхода
type SignOutCause string

const (
	CauseManual            SignOutCause = "manual"
	CauseHeartbeatTimeout  SignOutCause = "heartbeat_timeout"
	CauseHeartbeatDeclined SignOutCause = "heartbeat_declined"
	CauseSessionConflict   SignOutCause = "session_conflict"
	CauseMockLocation      SignOutCause = "mock_location"
)

// ForcedSignOuter - общий сценарий принудительного выхода
type ForcedSignOuter interface {
	ForcedSignOut(ctx context.Context, uid string, local repository.LocalStore, cause SignOutCause) error
}

// TokenRevoker отзывает access токены установки, выпущенные до момента at
type TokenRevoker interface {
	Revoke(ctx context.Context, deviceKey string, at time.Time) error
}

// identityKeys - всё, что привязывает устройство к водителю.
// KeyDeviceID не стирается: установка остаётся той же после выхода.
var identityKeys = []string{
	domain.KeyUserID,
	domain.KeySessionToken,
	domain.KeyIsAdmin,
	domain.KeyLastActivity,
	domain.KeyHeartbeatPending,
	domain.KeyMockedLocation,
	domain.KeyForeground,
}

type SignOutUseCase struct {
	queue    *QueueUseCase
	live     repository.LiveLocationRepository
	notifier repository.Notifier
	revoker  TokenRevoker
	sessions SessionLookup
	clock    clock.Clock
	logger   *zap.Logger

	onSignedOut func(deviceKey string)
}

func NewSignOutUseCase(
	queue *QueueUseCase,
	live repository.LiveLocationRepository,
	notifier repository.Notifier,
	revoker TokenRevoker,
	clk clock.Clock,
	logger *zap.Logger,
) *SignOutUseCase {
	return &SignOutUseCase{
		queue:    queue,
		live:     live,
		notifier: notifier,
		revoker:  revoker,
		clock:    clk,
		logger:   logger,
	}
}

// Bind подключает живые сессии и обработчик завершения выхода
func (uc *SignOutUseCase) Bind(sessions SessionLookup, onSignedOut func(deviceKey string)) {
	uc.sessions = sessions
	uc.onSignedOut = onSignedOut
}

// SignOut - добровольный выход без уведомления
func (uc *SignOutUseCase) SignOut(ctx context.Context, uid string, local repository.LocalStore) error {
	return uc.ForcedSignOut(ctx, uid, local, CauseManual)
}

// ForcedSignOut снимает водителя со всех очередей, удаляет живую координату,
// чистит слот отмены и активную запись, уведомляет, стирает идентичность
// устройства и отзывает токены этой установки. Каждый шаг выполняется независимо.
func (uc *SignOutUseCase) ForcedSignOut(ctx context.Context, uid string, local repository.LocalStore, cause SignOutCause) error {
	sess := sessionFor(ctx, uc.sessions, uid, local)
	key := sess.Actor.DeviceKey()
	log := uc.logger.With(zap.String("uid", uid), zap.String("device", sess.Actor.Device), zap.String("cause", string(cause)))

	var errs []error
	if err := uc.queue.checkoutFromAll(ctx, sess, uid, nil, false, ReasonSignOut); err != nil {
		log.Error("sign-out: checkout failed", zap.Error(err))
		errs = append(errs, err)
	}
	if err := uc.live.Delete(ctx, uid); err != nil {
		log.Warn("sign-out: live location delete failed", zap.Error(err))
		errs = append(errs, err)
	}

	sess.Undo.Clear()
	if err := clearActiveRecord(ctx, local); err != nil {
		errs = append(errs, err)
	}
	uc.queue.notifyRecord(ctx, sess, nil)

	if n, ok := signOutNotification(uid, sess.Actor.Device, cause, uc.clock.Now()); ok {
		if err := uc.notifier.Notify(ctx, n); err != nil {
			observability.NotificationErr.Inc()
			log.Warn("sign-out: notification failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := local.Delete(ctx, identityKeys...); err != nil {
		errs = append(errs, err)
	}
	if uc.revoker != nil {
		if err := uc.revoker.Revoke(ctx, key, uc.clock.Now()); err != nil {
			log.Warn("sign-out: token revocation failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if cause != CauseManual {
		observability.ForcedSignOuts.WithLabelValues(string(cause)).Inc()
	}
	log.Info("signed out")

	if uc.onSignedOut != nil {
		uc.onSignedOut(key)
	}
	return stderrors.Join(errs...)
}

// EnforceIntegrity выкидывает устройство, на котором зафиксирована подмена координат
func (uc *SignOutUseCase) EnforceIntegrity(ctx context.Context, uid string, local repository.LocalStore) error {
	flag, err := local.Get(ctx, domain.KeyMockedLocation)
	if err == domain.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if flag != "true" {
		return nil
	}
	return uc.ForcedSignOut(ctx, uid, local, CauseMockLocation)
}

func signOutNotification(uid, device string, cause SignOutCause, now time.Time) (domain.Notification, bool) {
	n := domain.Notification{ID: uuid.NewString(), UID: uid, Device: device, CreatedAt: now}
	switch cause {
	case CauseHeartbeatTimeout, CauseHeartbeatDeclined:
		n.Kind = domain.NotifyHeartbeatLogout
		n.Title = "⚠️ Automatikus Kijelentkezés"
		n.Body = "Nem válaszoltál, ezért a rendszer kiléptetett!"
	case CauseSessionConflict:
		n.Kind = domain.NotifySessionConflict
		n.Title = "Biztonsági Figyelmeztetés"
		n.Body = "Bejelentkeztél egy másik eszközön. Ezen az eszközön kiléptettünk a sorból."
	case CauseMockLocation:
		n.Kind = domain.NotifySessionConflict
		n.Title = "Biztonsági Figyelmeztetés"
		n.Body = "Hamis helyadatot észleltünk, ezért kiléptettünk a sorból."
	default:
		return domain.Notification{}, false
	}
	return n, true
}
