package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevocation хранит момент принудительного выхода установки (domain.DeviceKey).
// Токены этой установки, выпущенные раньше этого момента, отклоняются.
type TokenRevocation struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenRevocation(r *Redis, ttl time.Duration) *TokenRevocation {
	return &TokenRevocation{client: r.Client(), ttl: ttl}
}

func revokedKey(deviceKey string) string {
	return "droszt:revoked:" + deviceKey
}

// Revoke отзывает токены установки, выпущенные до at
func (t *TokenRevocation) Revoke(ctx context.Context, deviceKey string, at time.Time) error {
	if err := t.client.Set(ctx, revokedKey(deviceKey), at.Unix(), t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

// RevokedBefore возвращает момент отзыва; ноль если отзыва не было
func (t *TokenRevocation) RevokedBefore(ctx context.Context, deviceKey string) (time.Time, error) {
	raw, err := t.client.Get(ctx, revokedKey(deviceKey)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read revocation: %w", err)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt revocation value: %w", err)
	}
	return time.Unix(sec, 0), nil
}
