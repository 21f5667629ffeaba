package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

type profileRepository struct {
	db     *DB
	logger *zap.Logger

	mu       sync.Mutex
	listener *pq.Listener
	subs     map[string]map[chan domain.Profile]struct{}
}

// NewProfileRepository создает ProfileRepository; Watch использует LISTEN profile_changed
func NewProfileRepository(db *DB, logger *zap.Logger) repository.ProfileRepository {
	return &profileRepository{
		db:     db,
		logger: logger,
		subs:   make(map[string]map[chan domain.Profile]struct{}),
	}
}

func (r *profileRepository) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.GetContext(ctx, &p, `
		SELECT uid, username, license_plate, user_type, role, status, can_see_213, session_token
		FROM profiles WHERE uid = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *profileRepository) SetSessionToken(ctx context.Context, uid string, token int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET session_token = $2, updated_at = NOW() WHERE uid = $1`, uid, token)
	if err != nil {
		return fmt.Errorf("failed to set session token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// Watch подписывает на изменения профиля. Одно LISTEN соединение обслуживает всех подписчиков.
func (r *profileRepository) Watch(ctx context.Context, uid string) (<-chan domain.Profile, error) {
	if err := r.ensureListener(); err != nil {
		return nil, err
	}

	ch := make(chan domain.Profile, 1)
	r.mu.Lock()
	if r.subs[uid] == nil {
		r.subs[uid] = make(map[chan domain.Profile]struct{})
	}
	r.subs[uid][ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs[uid], ch)
		if len(r.subs[uid]) == 0 {
			delete(r.subs, uid)
		}
		close(ch)
		r.mu.Unlock()
	}()

	return ch, nil
}

func (r *profileRepository) ensureListener() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener != nil {
		return nil
	}

	l := pq.NewListener(r.db.DSN(), time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Warn("profile listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(ProfileChannel); err != nil {
		l.Close()
		return fmt.Errorf("failed to listen %s: %w", ProfileChannel, err)
	}
	r.listener = l

	go r.dispatch(l)
	r.logger.Info("Listening for profile changes", zap.String("channel", ProfileChannel))
	return nil
}

func (r *profileRepository) dispatch(l *pq.Listener) {
	for n := range l.Notify {
		// nil приходит после переподключения: уведомления могли потеряться
		if n == nil {
			for _, uid := range r.watchedUIDs() {
				r.push(uid)
			}
			continue
		}
		r.push(n.Extra)
	}
}

func (r *profileRepository) watchedUIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.subs))
	for uid := range r.subs {
		out = append(out, uid)
	}
	return out
}

func (r *profileRepository) push(uid string) {
	r.mu.Lock()
	watched := len(r.subs[uid]) > 0
	r.mu.Unlock()
	if !watched {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := r.Get(ctx, uid)
	if err != nil {
		r.logger.Warn("failed to reload profile", zap.String("uid", uid), zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs[uid] {
		select {
		case ch <- *p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- *p
		}
	}
}
