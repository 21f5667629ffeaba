package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	redisRepo "github.com/droszt-service/internal/repository/redis"
)

func cleanupDocument(ctx context.Context, client *redis.Client, name string) {
	client.Del(ctx,
		"droszt:doc:{"+name+"}",
		"droszt:doc:{"+name+"}:members",
		"droszt:doc:{"+name+"}:emiratesMembers",
		"droszt:doc:{"+name+"}:notes",
	)
}

func TestDocumentRepository_UnionAndRemove(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewDocumentRepository(client, zap.NewNop())
	ctx := context.Background()
	name := "test-Akadémia"
	cleanupDocument(ctx, client, name)
	defer cleanupDocument(ctx, client, name)

	a := domain.QueueMember{UID: "a", Username: "101", LicensePlate: "AAA111", UserType: domain.UserTypeTaxi, CheckInTime: "10:00"}
	b := domain.QueueMember{UID: "b", Username: "102", LicensePlate: "BBB222", UserType: domain.UserTypeVIP, CheckInTime: "10:01"}

	// документа ещё нет
	err := repo.ArrayUnion(ctx, name, domain.FieldMembers, a)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	_, err = repo.Get(ctx, name)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	require.NoError(t, repo.Create(ctx, name, domain.FieldMembers, []domain.QueueMember{a}))
	assert.ErrorIs(t, repo.Create(ctx, name, domain.FieldMembers, nil), domain.ErrDocumentExists)

	require.NoError(t, repo.ArrayUnion(ctx, name, domain.FieldMembers, b))
	// повторный union той же записи ничего не меняет
	require.NoError(t, repo.ArrayUnion(ctx, name, domain.FieldMembers, b))

	doc, err := repo.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, []domain.QueueMember{a, b}, doc.Members)
	assert.Empty(t, doc.EmiratesMembers)

	// удаление по неточному значению не срабатывает
	stale := a
	stale.Markers.FoodPhone = true
	removed, err := repo.ArrayRemove(ctx, name, domain.FieldMembers, stale)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.ArrayRemove(ctx, name, domain.FieldMembers, a)
	require.NoError(t, err)
	assert.True(t, removed)

	doc, err = repo.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, []domain.QueueMember{b}, doc.Members)
}

func TestDocumentRepository_ReplaceAndNotes(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewDocumentRepository(client, zap.NewNop())
	ctx := context.Background()
	name := "test-Reptér"
	cleanupDocument(ctx, client, name)
	defer cleanupDocument(ctx, client, name)

	members := []domain.QueueMember{{UID: "x"}, {UID: "y"}}
	require.NoError(t, repo.Replace(ctx, name, domain.FieldEmiratesMembers, members))
	require.NoError(t, repo.SetNotes(ctx, name, []string{"Terminal 2B 14:30", "Terminal 2A 15:00"}))

	doc, err := repo.Get(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, doc.Members)
	assert.Equal(t, members, doc.EmiratesMembers)
	assert.Equal(t, []string{"Terminal 2B 14:30", "Terminal 2A 15:00"}, doc.Notes)

	require.NoError(t, repo.Replace(ctx, name, domain.FieldEmiratesMembers, nil))
	doc, err = repo.Get(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, doc.EmiratesMembers)
}

func TestDocumentRepository_Watch(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	repo := redisRepo.NewDocumentRepository(client, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	name := "test-Conti"
	cleanupDocument(context.Background(), client, name)
	defer cleanupDocument(context.Background(), client, name)

	updates, err := repo.Watch(ctx, name)
	require.NoError(t, err)

	select {
	case doc := <-updates:
		assert.Empty(t, doc.Members)
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for initial snapshot")
	}

	require.NoError(t, repo.Create(ctx, name, domain.FieldMembers, []domain.QueueMember{{UID: "a"}}))

	select {
	case doc := <-updates:
		require.Len(t, doc.Members, 1)
		assert.Equal(t, "a", doc.Members[0].UID)
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change notification")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, 3*time.Second, 10*time.Millisecond)
}
