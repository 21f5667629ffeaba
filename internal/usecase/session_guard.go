package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/clock"
)

// SessionGuard обнаруживает вход того же водителя на другом устройстве.
// Токен сессии - время входа в миллисекундах; побеждает более поздний.
// Каждая установка хранит свой токен и сверяет его с профилем.
type SessionGuard struct {
	profiles repository.ProfileRepository
	signOut  ForcedSignOuter
	clock    clock.Clock
	settle   time.Duration
	logger   *zap.Logger

	mu sync.Mutex
	// ключ - domain.DeviceKey
	watches map[string]context.CancelFunc
}

func NewSessionGuard(
	profiles repository.ProfileRepository,
	signOut ForcedSignOuter,
	clk clock.Clock,
	settle time.Duration,
	logger *zap.Logger,
) *SessionGuard {
	return &SessionGuard{
		profiles: profiles,
		signOut:  signOut,
		clock:    clk,
		settle:   settle,
		logger:   logger,
		watches:  make(map[string]context.CancelFunc),
	}
}

// BeginSession записывает новый токен локально и в профиль
func (g *SessionGuard) BeginSession(ctx context.Context, uid string, local repository.LocalStore) (int64, error) {
	token := g.clock.Now().UnixMilli()
	if err := local.Set(ctx, domain.KeySessionToken, strconv.FormatInt(token, 10)); err != nil {
		return 0, fmt.Errorf("failed to store session token: %w", err)
	}
	if err := g.profiles.SetSessionToken(ctx, uid, token); err != nil {
		return 0, fmt.Errorf("failed to publish session token: %w", err)
	}
	g.logger.Info("session started", zap.String("uid", uid), zap.Int64("token", token))
	return token, nil
}

// Watch подписывает установку на профиль водителя до Unwatch
func (g *SessionGuard) Watch(actor domain.Actor, local repository.LocalStore) error {
	uid, key := actor.UID, actor.DeviceKey()
	g.mu.Lock()
	if cancel, ok := g.watches[key]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.watches[key] = cancel
	g.mu.Unlock()

	profiles, err := g.profiles.Watch(ctx, uid)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch profile: %w", err)
	}

	go func() {
		for p := range profiles {
			conflict, err := g.Reconcile(ctx, uid, local, p.SessionToken)
			if err != nil {
				g.logger.Warn("session reconcile failed", zap.String("device", key), zap.Error(err))
				continue
			}
			if conflict {
				g.Unwatch(key)
				return
			}
		}
	}()
	return nil
}

func (g *SessionGuard) Unwatch(deviceKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cancel, ok := g.watches[deviceKey]; ok {
		cancel()
		delete(g.watches, deviceKey)
	}
}

// Reconcile сравнивает удалённый токен с локальным. Расхождение перепроверяется
// после паузы: токен мог только что записать этот же вход. Возвращает true,
// если устройство устарело и выход выполнен.
func (g *SessionGuard) Reconcile(ctx context.Context, uid string, local repository.LocalStore, remote int64) (bool, error) {
	localTok, ok, err := readToken(ctx, local)
	if err != nil || !ok {
		return false, err
	}
	if remote == 0 || remote == localTok {
		return false, nil
	}

	if g.settle > 0 {
		fired := make(chan struct{})
		t := g.clock.AfterFunc(g.settle, func() { close(fired) })
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-fired:
		}

		p, err := g.profiles.Get(ctx, uid)
		if err != nil {
			return false, err
		}
		remote = p.SessionToken
		if localTok, ok, err = readToken(ctx, local); err != nil || !ok {
			return false, err
		}
		if remote == localTok {
			return false, nil
		}
	}

	if localTok > remote {
		g.logger.Debug("remote session token is older, ignoring",
			zap.String("uid", uid),
			zap.Int64("local", localTok),
			zap.Int64("remote", remote),
		)
		return false, nil
	}

	g.logger.Warn("newer session on another device",
		zap.String("uid", uid),
		zap.Int64("local", localTok),
		zap.Int64("remote", remote),
	)
	return true, g.signOut.ForcedSignOut(ctx, uid, local, CauseSessionConflict)
}

func readToken(ctx context.Context, local repository.LocalStore) (int64, bool, error) {
	raw, err := local.Get(ctx, domain.KeySessionToken)
	if err == domain.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	tok, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return tok, true, nil
}
