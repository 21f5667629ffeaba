package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/repository/sqlite"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "local.db"))
	defer s.Close()
	ctx := context.Background()

	u1 := s.ForDevice("u1", "phone")
	u2 := s.ForDevice("u2", "phone")
	tablet := s.ForDevice("u1", "tablet")

	_, err := u1.Get(ctx, domain.KeyActiveCheckin)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, u1.Set(ctx, domain.KeyActiveCheckin, `{"locationName":"Conti"}`))
	require.NoError(t, u1.Set(ctx, domain.KeyActiveCheckin, `{"locationName":"Kozmo"}`))
	require.NoError(t, u1.Set(ctx, domain.KeyIsAdmin, "false"))

	v, err := u1.Get(ctx, domain.KeyActiveCheckin)
	require.NoError(t, err)
	assert.Equal(t, `{"locationName":"Kozmo"}`, v)

	_, err = u2.Get(ctx, domain.KeyActiveCheckin)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	_, err = tablet.Get(ctx, domain.KeyActiveCheckin)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, u1.Delete(ctx, domain.KeyActiveCheckin, domain.KeyIsAdmin, "missing"))
	_, err = u1.Get(ctx, domain.KeyIsAdmin)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	s := openStore(t, path)
	require.NoError(t, s.ForDevice("u1", "").Set(ctx, domain.KeyFirstOutside, "1700000000000"))
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()
	v, err := s.ForDevice("u1", "").Get(ctx, domain.KeyFirstOutside)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", v)
}
