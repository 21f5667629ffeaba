package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/repository/postgres/testhelpers"
)

func TestLiveLocationRepository_UpsertGetDelete(t *testing.T) {
	tdb := testhelpers.SetupTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	require.NoError(t, tdb.Cleanup(ctx))

	repo := testhelpers.NewLiveLocationRepositoryForTest(tdb)

	first := domain.LiveLocation{UID: "u1", Lat: 47.489, Lng: 19.072, Timestamp: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, repo.Upsert(ctx, first))

	second := first
	second.Lat = 47.490
	second.Timestamp = first.Timestamp.Add(10 * time.Second)
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 47.490, got.Lat, 1e-9)
	assert.True(t, second.Timestamp.Equal(got.Timestamp))

	require.NoError(t, repo.Delete(ctx, "u1"))
	_, err = repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)

	// удаление отсутствующей записи не ошибка
	require.NoError(t, repo.Delete(ctx, "u1"))
}
