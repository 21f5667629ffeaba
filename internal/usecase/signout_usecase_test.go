package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/repository/memory"
	"github.com/droszt-service/internal/usecase"
)

type signOutFixture struct {
	uc       *usecase.SignOutUseCase
	queue    *usecase.QueueUseCase
	live     *MockLiveLocationRepository
	revoker  *MockRevoker
	notifier *recordingNotifier
	local    *memory.LocalStore
	sess     *usecase.Session
}

func newSignOutFixture(t *testing.T) *signOutFixture {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	queue := usecase.NewQueueUseCase(memory.NewDocumentRepository(), &MockProfileRepository{}, testRegistry(t), nil, clk, zap.NewNop())
	live := &MockLiveLocationRepository{}
	revoker := &MockRevoker{}
	notifier := &recordingNotifier{}
	uc := usecase.NewSignOutUseCase(queue, live, notifier, revoker, clk, zap.NewNop())

	local := memory.NewLocalStore()
	require.NoError(t, local.Set(ctx, domain.KeyUserID, "u1"))
	require.NoError(t, local.Set(ctx, domain.KeySessionToken, "1740823200000"))

	return &signOutFixture{
		uc:       uc,
		queue:    queue,
		live:     live,
		revoker:  revoker,
		notifier: notifier,
		local:    local,
		sess:     usecase.NewSession(domain.Actor{UID: "u1"}, local, false),
	}
}

func TestSignOut_ClearsEverything(t *testing.T) {
	f := newSignOutFixture(t)
	ctx := context.Background()
	f.live.On("Delete", mock.Anything, "u1").Return(nil)
	f.revoker.On("Revoke", "u1/default").Return(nil)

	var signedOut []string
	f.uc.Bind(stubLookup{"u1/default": f.sess}, func(key string) { signedOut = append(signedOut, key) })

	m := driver("u1", "1", "P-1", domain.UserTypeVOsztaly)
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueConti, m))
	f.sess.Undo.Set(domain.CheckoutMemento{QueueName: domain.QueueKozmo, Member: m})

	require.NoError(t, f.uc.ForcedSignOut(ctx, "u1", f.local, usecase.CauseHeartbeatTimeout))

	for _, q := range []string{domain.QueueConti, domain.QueueVOsztaly} {
		snap, err := f.queue.Snapshot(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, snap.Members, q)
	}
	_, ok := f.sess.Undo.Get()
	assert.False(t, ok)
	for _, key := range []string{domain.KeyUserID, domain.KeySessionToken, domain.KeyActiveCheckin} {
		_, err := f.local.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, key)
	}
	assert.Equal(t, []domain.NotificationKind{domain.NotifyHeartbeatLogout}, f.notifier.kinds())
	assert.Equal(t, []string{"u1/default"}, signedOut)
	f.live.AssertExpectations(t)
	f.revoker.AssertExpectations(t)
}

func TestSignOut_ManualHasNoNotification(t *testing.T) {
	f := newSignOutFixture(t)
	f.live.On("Delete", mock.Anything, "u1").Return(nil)
	f.revoker.On("Revoke", "u1/default").Return(nil)

	require.NoError(t, f.uc.SignOut(context.Background(), "u1", f.local))
	assert.Empty(t, f.notifier.kinds())
}

func TestSignOut_StepsRunDespiteFailures(t *testing.T) {
	f := newSignOutFixture(t)
	ctx := context.Background()
	f.live.On("Delete", mock.Anything, "u1").Return(errors.New("db down"))
	f.revoker.On("Revoke", "u1/default").Return(nil)

	err := f.uc.ForcedSignOut(ctx, "u1", f.local, usecase.CauseSessionConflict)
	assert.Error(t, err)

	_, getErr := f.local.Get(ctx, domain.KeyUserID)
	assert.ErrorIs(t, getErr, domain.ErrKeyNotFound)
	assert.Equal(t, []domain.NotificationKind{domain.NotifySessionConflict}, f.notifier.kinds())
	f.revoker.AssertExpectations(t)
}

func TestSignOut_EnforceIntegrity(t *testing.T) {
	f := newSignOutFixture(t)
	ctx := context.Background()
	f.live.On("Delete", mock.Anything, "u1").Return(nil)
	f.revoker.On("Revoke", "u1/default").Return(nil)

	require.NoError(t, f.uc.EnforceIntegrity(ctx, "u1", f.local))
	f.revoker.AssertNotCalled(t, "Revoke", "u1/default")

	require.NoError(t, f.local.Set(ctx, domain.KeyMockedLocation, "true"))
	require.NoError(t, f.uc.EnforceIntegrity(ctx, "u1", f.local))
	f.revoker.AssertCalled(t, "Revoke", "u1/default")
	_, err := f.local.Get(ctx, domain.KeyMockedLocation)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

type stubLookup map[string]*usecase.Session

func (l stubLookup) Session(deviceKey string) (*usecase.Session, bool) {
	s, ok := l[deviceKey]
	return s, ok
}
