package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/repository/cache"
)

func getTestRedis(t *testing.T) *cache.Redis {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}

	return cache.NewRedisFromClient(client, zap.NewNop())
}

func TestLocalStore_NamespacedPerDevice(t *testing.T) {
	r := getTestRedis(t)
	defer r.Close()

	ctx := context.Background()
	keys := []string{"droszt:local:{u1}:default", "droszt:local:{u1}:tablet", "droszt:local:{u2}:default"}
	r.Client().Del(ctx, keys...)
	defer r.Client().Del(ctx, keys...)

	factory := cache.NewLocalStoreFactory(r)
	s1 := factory.ForDevice("u1", "")
	s2 := factory.ForDevice("u2", "")
	tablet := factory.ForDevice("u1", "tablet")

	require.NoError(t, s1.Set(ctx, domain.KeyUserID, "u1"))

	v, err := s1.Get(ctx, domain.KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "u1", v)

	_, err = s2.Get(ctx, domain.KeyUserID)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	_, err = tablet.Get(ctx, domain.KeyUserID)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, s1.Delete(ctx, domain.KeyUserID, domain.KeyIsAdmin))
	_, err = s1.Get(ctx, domain.KeyUserID)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	assert.NoError(t, s1.Delete(ctx))
}

func TestTokenRevocation(t *testing.T) {
	r := getTestRedis(t)
	defer r.Close()

	ctx := context.Background()
	r.Client().Del(ctx, "droszt:revoked:u1/phone", "droszt:revoked:u1/tablet")
	defer r.Client().Del(ctx, "droszt:revoked:u1/phone", "droszt:revoked:u1/tablet")

	rev := cache.NewTokenRevocation(r, time.Hour)

	at, err := rev.RevokedBefore(ctx, "u1/phone")
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	now := time.Unix(1700000000, 0)
	require.NoError(t, rev.Revoke(ctx, "u1/phone", now))

	at, err = rev.RevokedBefore(ctx, "u1/phone")
	require.NoError(t, err)
	assert.True(t, now.Equal(at))

	// другое устройство того же водителя не затронуто
	at, err = rev.RevokedBefore(ctx, "u1/tablet")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}
