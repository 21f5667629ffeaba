package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	redisRepo "github.com/droszt-service/internal/repository/redis"
)

// TestStreamRepository_CreateConsumerGroup tests consumer group creation
func TestStreamRepository_CreateConsumerGroup(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()

	streamName := "test:stream:gps:samples"
	groupName := "test-group"
	client.Del(ctx, streamName)
	defer client.Del(ctx, streamName)

	err := repo.CreateConsumerGroup(ctx, streamName, groupName)
	require.NoError(t, err)

	groups, err := client.XInfoGroups(ctx, streamName).Result()
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, groupName, groups[0].Name)

	// Creating again should not error (BUSYGROUP handled)
	err = repo.CreateConsumerGroup(ctx, streamName, groupName)
	assert.NoError(t, err)
}

// TestStreamRepository_PublishToStream tests message publishing
func TestStreamRepository_PublishToStream(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()

	streamName := "test:stream:location:live"
	client.Del(ctx, streamName)
	defer client.Del(ctx, streamName)

	loc := domain.LiveLocation{UID: "driver-1", Lat: 47.49, Lng: 19.07, Timestamp: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, repo.PublishToStream(ctx, streamName, loc))

	messages, err := client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamName, "0"},
		Count:   1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Messages, 1)

	dataStr, ok := messages[0].Messages[0].Values["data"].(string)
	require.True(t, ok)

	var received domain.LiveLocation
	require.NoError(t, json.Unmarshal([]byte(dataStr), &received))
	assert.Equal(t, loc, received)
}

// TestStreamRepository_ConsumeBatchAndAck tests batch consumption and acknowledgment
func TestStreamRepository_ConsumeBatchAndAck(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewStreamRepository(client, zap.NewNop())
	ctx := context.Background()

	streamName := "test:stream:gps:batch"
	groupName := "test-batch-group"
	client.Del(ctx, streamName)
	defer client.Del(ctx, streamName)

	require.NoError(t, repo.CreateConsumerGroup(ctx, streamName, groupName))

	for i := 0; i < 3; i++ {
		sample := domain.LocationSample{UID: "driver-1", Point: domain.Point{Lat: 47.49, Lng: 19.07 + float64(i)/1000}}
		require.NoError(t, repo.PublishToStream(ctx, streamName, sample))
	}

	messages, err := repo.ConsumeBatch(ctx, streamName, groupName, "consumer-1", 2)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	require.NoError(t, repo.AckMessages(ctx, streamName, groupName, ids))

	pending, err := client.XPending(ctx, streamName, groupName).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	rest, err := repo.ConsumeBatch(ctx, streamName, groupName, "consumer-1", 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	empty, err := repo.ConsumeBatch(ctx, streamName, groupName, "consumer-1", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.NoError(t, repo.AckMessages(ctx, streamName, groupName, nil))
}
