package usecase_test

import (
	"context"
	"strconv"
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

func setToken(t *testing.T, local *memory.LocalStore, token int64) {
	t.Helper()
	require.NoError(t, local.Set(context.Background(), domain.KeySessionToken, strconv.FormatInt(token, 10)))
}

func TestSessionGuard_BeginSession(t *testing.T) {
	clk := clock.NewFake(time.UnixMilli(1740823200000))
	profiles := &MockProfileRepository{}
	profiles.On("SetSessionToken", mock.Anything, "u1", int64(1740823200000)).Return(nil)
	guard := usecase.NewSessionGuard(profiles, &MockSignOuter{}, clk, 0, zap.NewNop())
	local := memory.NewLocalStore()

	token, err := guard.BeginSession(context.Background(), "u1", local)
	require.NoError(t, err)
	assert.Equal(t, int64(1740823200000), token)

	raw, err := local.Get(context.Background(), domain.KeySessionToken)
	require.NoError(t, err)
	assert.Equal(t, "1740823200000", raw)
	profiles.AssertExpectations(t)
}

func TestSessionGuard_Reconcile(t *testing.T) {
	tests := []struct {
		name     string
		local    int64
		remote   int64
		conflict bool
	}{
		{name: "same token", local: 100, remote: 100},
		{name: "remote missing", local: 100, remote: 0},
		{name: "remote older", local: 200, remote: 100},
		{name: "remote newer", local: 100, remote: 200, conflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signOut := &MockSignOuter{}
			signOut.On("ForcedSignOut", "u1", usecase.CauseSessionConflict).Return(nil).Maybe()
			guard := usecase.NewSessionGuard(&MockProfileRepository{}, signOut, clock.NewFake(time.Now()), 0, zap.NewNop())
			local := memory.NewLocalStore()
			setToken(t, local, tt.local)

			conflict, err := guard.Reconcile(context.Background(), "u1", local, tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.conflict, conflict)
			if tt.conflict {
				signOut.AssertNumberOfCalls(t, "ForcedSignOut", 1)
			} else {
				signOut.AssertNotCalled(t, "ForcedSignOut", "u1", usecase.CauseSessionConflict)
			}
		})
	}
}

func TestSessionGuard_NoLocalTokenIgnored(t *testing.T) {
	guard := usecase.NewSessionGuard(&MockProfileRepository{}, &MockSignOuter{}, clock.NewFake(time.Now()), 0, zap.NewNop())
	conflict, err := guard.Reconcile(context.Background(), "u1", memory.NewLocalStore(), 500)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestSessionGuard_SettleRecheck(t *testing.T) {
	clk := clock.NewFake(time.Now())
	profiles := &MockProfileRepository{}
	// за время паузы удалённый токен сравнялся с локальным
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UID: "u1", SessionToken: 100}, nil)
	signOut := &MockSignOuter{}
	guard := usecase.NewSessionGuard(profiles, signOut, clk, time.Second, zap.NewNop())
	local := memory.NewLocalStore()
	setToken(t, local, 100)

	type result struct {
		conflict bool
		err      error
	}
	done := make(chan result, 1)
	go func() {
		c, err := guard.Reconcile(context.Background(), "u1", local, 90)
		done <- result{c, err}
	}()

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, 5*time.Millisecond)
	clk.Advance(time.Second)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.False(t, r.conflict)
	case <-time.After(time.Second):
		t.Fatal("reconcile did not finish")
	}
	signOut.AssertNotCalled(t, "ForcedSignOut", "u1", usecase.CauseSessionConflict)
}

func TestSessionGuard_WatchSignsOutStaleDevice(t *testing.T) {
	profiles := &MockProfileRepository{}
	updates := make(chan domain.Profile, 1)
	profiles.On("Watch", mock.Anything, "u1").Return((<-chan domain.Profile)(updates), nil)
	signOut := &MockSignOuter{}
	called := make(chan struct{})
	signOut.On("ForcedSignOut", "u1", usecase.CauseSessionConflict).Return(nil).Run(func(mock.Arguments) { close(called) }).Once()

	guard := usecase.NewSessionGuard(profiles, signOut, clock.NewFake(time.Now()), 0, zap.NewNop())
	local := memory.NewLocalStore()
	setToken(t, local, 100)

	require.NoError(t, guard.Watch(domain.Actor{UID: "u1"}, local))
	updates <- domain.Profile{UID: "u1", SessionToken: 200}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("stale device was not signed out")
	}
	guard.Unwatch(domain.DeviceKey("u1", ""))
}
