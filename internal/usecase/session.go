package usecase

import (
	"context"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// Session - контекст операций одного водителя: кто действует,
// его слот отмены и durable хранилище устройства.
type Session struct {
	Actor           domain.Actor
	Undo            *UndoTracker
	Local           repository.LocalStore
	EnforceGeofence bool

	// Presence переопределяет проверку нахождения в зоне; nil - проверка по умолчанию
	Presence PresenceChecker
}

func NewSession(actor domain.Actor, local repository.LocalStore, enforceGeofence bool) *Session {
	return &Session{
		Actor:           actor,
		Undo:            NewUndoTracker(),
		Local:           local,
		EnforceGeofence: enforceGeofence,
	}
}

// SessionLookup находит живую сессию устройства по domain.DeviceKey
type SessionLookup interface {
	Session(deviceKey string) (*Session, bool)
}

// sessionFor возвращает живую сессию или собирает временную из durable хранилища.
// Фоновые вызовы могут прийти в процесс, где сессии ещё нет.
func sessionFor(ctx context.Context, lookup SessionLookup, uid string, local repository.LocalStore) *Session {
	device := storedDevice(ctx, local)
	if lookup != nil {
		if s, ok := lookup.Session(domain.DeviceKey(uid, device)); ok {
			return s
		}
	}
	admin, _ := local.Get(ctx, domain.KeyIsAdmin)
	return NewSession(domain.Actor{UID: uid, Admin: admin == "true", Device: device}, local, true)
}

// storedDevice - установка, которой принадлежит хранилище
func storedDevice(ctx context.Context, local repository.LocalStore) string {
	device, err := local.Get(ctx, domain.KeyDeviceID)
	if err != nil {
		return domain.DefaultDevice
	}
	return domain.NormalizeDevice(device)
}

// storedUID - uid водителя из durable хранилища; пустая строка если вход не выполнен
func storedUID(ctx context.Context, local repository.LocalStore) (string, error) {
	uid, err := local.Get(ctx, domain.KeyUserID)
	if err == domain.ErrKeyNotFound {
		return "", nil
	}
	return uid, err
}
