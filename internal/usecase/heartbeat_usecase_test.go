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

type heartbeatFixture struct {
	uc       *usecase.HeartbeatUseCase
	clk      *clock.Fake
	signOut  *MockSignOuter
	notifier *recordingNotifier
	local    *memory.LocalStore
}

var heartbeatCfg = usecase.HeartbeatConfig{Interval: 55 * time.Minute, ResponseWindow: 4 * time.Minute}

func newHeartbeatFixture(t *testing.T) *heartbeatFixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	f := &heartbeatFixture{
		clk:      clk,
		signOut:  &MockSignOuter{},
		notifier: &recordingNotifier{},
		local:    memory.NewLocalStore(),
	}
	f.uc = usecase.NewHeartbeatUseCase(f.notifier, f.signOut, clk, heartbeatCfg, zap.NewNop())
	return f
}

func (f *heartbeatFixture) check(t *testing.T) {
	t.Helper()
	require.NoError(t, f.uc.Check(context.Background(), "u1", f.local))
}

func TestHeartbeat_FirstCheckTouches(t *testing.T) {
	f := newHeartbeatFixture(t)
	f.check(t)

	raw, err := f.local.Get(context.Background(), domain.KeyLastActivity)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(f.clk.Now().UnixMilli(), 10), raw)
	assert.Empty(t, f.notifier.kinds())
}

func TestHeartbeat_ForegroundNeverPrompts(t *testing.T) {
	f := newHeartbeatFixture(t)
	require.NoError(t, f.uc.SetForeground(context.Background(), f.local, true))

	f.clk.Advance(3 * time.Hour)
	f.check(t)
	assert.Empty(t, f.notifier.kinds())
}

func TestHeartbeat_TimeoutSignsOut(t *testing.T) {
	f := newHeartbeatFixture(t)
	f.signOut.On("ForcedSignOut", "u1", usecase.CauseHeartbeatTimeout).Return(nil).Once()
	require.NoError(t, f.uc.Touch(context.Background(), f.local))

	f.clk.Advance(54 * time.Minute)
	f.check(t)
	assert.Empty(t, f.notifier.kinds())

	f.clk.Advance(time.Minute)
	f.check(t)
	require.Equal(t, []domain.NotificationKind{domain.NotifyHeartbeatPrompt}, f.notifier.kinds())
	assert.True(t, f.notifier.sent[0].Interactive)
	assert.Contains(t, f.notifier.sent[0].Body, "4 percen belül")

	// повторная проверка во время ожидания не шлёт второй запрос
	f.clk.Advance(time.Minute)
	f.check(t)
	assert.Len(t, f.notifier.kinds(), 1)

	f.clk.Advance(3 * time.Minute)
	f.signOut.AssertExpectations(t)
	_, err := f.local.Get(context.Background(), domain.KeyHeartbeatPending)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestHeartbeat_ConfirmResetsTimer(t *testing.T) {
	f := newHeartbeatFixture(t)
	ctx := context.Background()
	require.NoError(t, f.uc.Touch(ctx, f.local))
	f.clk.Advance(time.Hour)
	f.check(t)

	f.clk.Advance(time.Minute)
	require.NoError(t, f.uc.Respond(ctx, "u1", f.local, true))
	f.clk.Advance(10 * time.Minute)
	f.check(t)

	f.signOut.AssertNotCalled(t, "ForcedSignOut")
	assert.Len(t, f.notifier.kinds(), 1)
	assert.Equal(t, 0, f.clk.Pending())
}

func TestHeartbeat_DeclineSignsOut(t *testing.T) {
	f := newHeartbeatFixture(t)
	ctx := context.Background()
	f.signOut.On("ForcedSignOut", "u1", usecase.CauseHeartbeatDeclined).Return(nil).Once()

	// отказ без активного запроса ничего не делает
	require.NoError(t, f.uc.Respond(ctx, "u1", f.local, false))
	f.signOut.AssertNotCalled(t, "ForcedSignOut")

	require.NoError(t, f.uc.Touch(ctx, f.local))
	f.clk.Advance(time.Hour)
	f.check(t)
	require.NoError(t, f.uc.Respond(ctx, "u1", f.local, false))

	f.clk.Advance(10 * time.Minute)
	f.signOut.AssertExpectations(t)
}

func TestHeartbeat_ExpiredWhileProcessWasDown(t *testing.T) {
	f := newHeartbeatFixture(t)
	ctx := context.Background()
	f.signOut.On("ForcedSignOut", "u1", usecase.CauseHeartbeatTimeout).Return(nil).Once()

	deadline := f.clk.Now().Add(-time.Second)
	require.NoError(t, f.local.Set(ctx, domain.KeyHeartbeatPending, strconv.FormatInt(deadline.UnixMilli(), 10)))

	f.check(t)
	f.signOut.AssertExpectations(t)
}

func TestHeartbeat_PendingRearmedInFreshProcess(t *testing.T) {
	f := newHeartbeatFixture(t)
	ctx := context.Background()
	f.signOut.On("ForcedSignOut", "u1", usecase.CauseHeartbeatTimeout).Return(nil).Once()

	deadline := f.clk.Now().Add(2 * time.Minute)
	require.NoError(t, f.local.Set(ctx, domain.KeyHeartbeatPending, strconv.FormatInt(deadline.UnixMilli(), 10)))

	f.check(t)
	assert.Equal(t, 1, f.clk.Pending())
	f.check(t)
	assert.Equal(t, 1, f.clk.Pending())

	f.clk.Advance(2 * time.Minute)
	f.signOut.AssertExpectations(t)
}

func TestHeartbeat_StopCancelsPrompt(t *testing.T) {
	f := newHeartbeatFixture(t)
	require.NoError(t, f.uc.Touch(context.Background(), f.local))
	f.clk.Advance(time.Hour)
	f.check(t)

	f.uc.Stop(domain.DeviceKey("u1", ""))
	f.clk.Advance(10 * time.Minute)
	f.signOut.AssertNotCalled(t, "ForcedSignOut")
}

func TestHeartbeat_AnsweredByAnotherProcess(t *testing.T) {
	f := newHeartbeatFixture(t)
	ctx := context.Background()
	require.NoError(t, f.uc.Touch(ctx, f.local))
	f.clk.Advance(time.Hour)
	f.check(t)
	require.Len(t, f.notifier.kinds(), 1)

	// другой процесс принял «да» и снял флаг в общем хранилище
	require.NoError(t, f.local.Delete(ctx, domain.KeyHeartbeatPending))

	f.clk.Advance(5 * time.Minute)
	f.signOut.AssertNotCalled(t, "ForcedSignOut", mock.Anything, mock.Anything)
}
