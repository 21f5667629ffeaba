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
	"github.com/droszt-service/internal/zone"
)

type trackingFixture struct {
	tracking  *usecase.TrackingUseCase
	queue     *usecase.QueueUseCase
	live      *MockLiveLocationRepository
	scheduler *memory.TaskScheduler
	notifier  *recordingNotifier
	clk       *clock.Fake
	reg       *zone.Registry
	local     *memory.LocalStore
	sess      *usecase.Session
}

func newTrackingFixture(t *testing.T) *trackingFixture {
	t.Helper()
	ctx := context.Background()
	reg := testRegistry(t)
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	docs := memory.NewDocumentRepository()
	live := &MockLiveLocationRepository{}
	live.On("Upsert", mock.Anything, mock.Anything).Return(nil).Maybe()
	scheduler := memory.NewTaskScheduler()
	notifier := &recordingNotifier{}

	queue := usecase.NewQueueUseCase(docs, &MockProfileRepository{}, reg, nil, clk, zap.NewNop())
	tracking := usecase.NewTrackingUseCase(queue, live, scheduler, memory.NewPositionHub(), notifier, reg, clk,
		usecase.TrackingConfig{GracePeriod: 15 * time.Second}, zap.NewNop())
	queue.Observe(tracking)

	local := memory.NewLocalStore()
	require.NoError(t, local.Set(ctx, domain.KeyUserID, "u1"))
	sess := usecase.NewSession(domain.Actor{UID: "u1"}, local, true)
	sess.Presence = stubPresence{inside: map[string]bool{domain.QueueKozmo: true, domain.QueueConti: true}}

	return &trackingFixture{
		tracking:  tracking,
		queue:     queue,
		live:      live,
		scheduler: scheduler,
		notifier:  notifier,
		clk:       clk,
		reg:       reg,
		local:     local,
		sess:      sess,
	}
}

func (f *trackingFixture) sample(p domain.Point) domain.LocationSample {
	return domain.LocationSample{UID: "u1", Point: p, Timestamp: f.clk.Now()}
}

func (f *trackingFixture) grantAll(t *testing.T) {
	t.Helper()
	require.NoError(t, f.local.Set(context.Background(), domain.KeyForegroundGranted, "granted"))
	require.NoError(t, f.local.Set(context.Background(), domain.KeyBackgroundGranted, "granted"))
}

func TestTrackingUseCase_ScenarioGracePeriodCheckout(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueKozmo, driver("u1", "3", "KZM-003", domain.UserTypeTaxi)))

	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	_, err := f.local.Get(ctx, domain.KeyFirstOutside)
	require.NoError(t, err)

	f.clk.Advance(10 * time.Second)
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	snap, err := f.queue.Snapshot(ctx, domain.QueueKozmo)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 1)

	f.clk.Advance(6 * time.Second)
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))

	snap, err = f.queue.Snapshot(ctx, domain.QueueKozmo)
	require.NoError(t, err)
	assert.Empty(t, snap.Members)
	_, err = f.local.Get(ctx, domain.KeyActiveCheckin)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	_, err = f.local.Get(ctx, domain.KeyFirstOutside)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyZoneExit}, f.notifier.kinds())
	_, ok := f.sess.Undo.Get()
	assert.False(t, ok)
}

func TestTrackingUseCase_ReturnResetsFirstOutside(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueKozmo, driver("u1", "3", "KZM-003", domain.UserTypeTaxi)))

	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	f.clk.Advance(10 * time.Second)
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(insidePoint(t, f.reg, domain.QueueKozmo))))
	_, err := f.local.Get(ctx, domain.KeyFirstOutside)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	f.clk.Advance(10 * time.Second)
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	snap, err := f.queue.Snapshot(ctx, domain.QueueKozmo)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 1)
	assert.Empty(t, f.notifier.kinds())
}

func TestTrackingUseCase_NoRecordNoCheckout(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	f.clk.Advance(time.Minute)
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))

	assert.Empty(t, f.notifier.kinds())
	f.live.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestTrackingUseCase_SignedOutDeviceIgnored(t *testing.T) {
	f := newTrackingFixture(t)
	local := memory.NewLocalStore()

	require.NoError(t, f.tracking.HandleSample(context.Background(), local, f.sample(farAway)))
	f.live.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestTrackingUseCase_MockDetection(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()

	mocked := f.sample(farAway)
	mocked.Mocked = true
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, mocked))
	v, err := f.local.Get(ctx, domain.KeyMockedLocation)
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	require.NoError(t, f.tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	_, err = f.local.Get(ctx, domain.KeyMockedLocation)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	// администраторам подмена разрешена
	require.NoError(t, f.local.Set(ctx, domain.KeyIsAdmin, "true"))
	require.NoError(t, f.tracking.HandleSample(ctx, f.local, mocked))
	_, err = f.local.Get(ctx, domain.KeyMockedLocation)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestTrackingUseCase_LiveUpsertFailureDoesNotSkipGeofence(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	live := &MockLiveLocationRepository{}
	live.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("db down"))
	tracking := usecase.NewTrackingUseCase(f.queue, live, f.scheduler, memory.NewPositionHub(), f.notifier, f.reg, f.clk,
		usecase.TrackingConfig{GracePeriod: 15 * time.Second}, zap.NewNop())
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueConti, driver("u1", "3", "C-3", domain.UserTypeTaxi)))

	assert.Error(t, tracking.HandleSample(ctx, f.local, f.sample(farAway)))
	_, err := f.local.Get(ctx, domain.KeyFirstOutside)
	assert.NoError(t, err)
}

func TestTrackingUseCase_RegionExit(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueConti, driver("u1", "3", "C-3", domain.UserTypeTaxi)))

	// чужая зона и вход игнорируются
	require.NoError(t, f.tracking.HandleRegionEvent(ctx, f.local, domain.RegionEvent{Region: domain.QueueKozmo, Kind: domain.RegionExit}))
	require.NoError(t, f.tracking.HandleRegionEvent(ctx, f.local, domain.RegionEvent{Region: domain.QueueConti, Kind: domain.RegionEnter}))
	snap, err := f.queue.Snapshot(ctx, domain.QueueConti)
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)

	require.NoError(t, f.tracking.HandleRegionEvent(ctx, f.local, domain.RegionEvent{Region: domain.QueueConti, Kind: domain.RegionExit}))
	snap, err = f.queue.Snapshot(ctx, domain.QueueConti)
	require.NoError(t, err)
	assert.Empty(t, snap.Members)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyZoneExit}, f.notifier.kinds())
}

func TestTrackingUseCase_RegionExitWithoutEnforcement(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	sess := usecase.NewSession(domain.Actor{UID: "u1"}, f.local, false)
	require.NoError(t, f.queue.CheckIn(ctx, sess, domain.QueueConti, driver("u1", "3", "C-3", domain.UserTypeTaxi)))

	require.NoError(t, f.tracking.HandleRegionEvent(ctx, f.local, domain.RegionEvent{Region: domain.QueueConti, Kind: domain.RegionExit}))
	snap, err := f.queue.Snapshot(ctx, domain.QueueConti)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 1)
	assert.Empty(t, f.notifier.kinds())
	f.live.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestTrackingUseCase_RegionExitCrossCheckedWithLiveLocation(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	tracking := usecase.NewTrackingUseCase(f.queue, f.live, f.scheduler, memory.NewPositionHub(), f.notifier, f.reg, f.clk,
		usecase.TrackingConfig{GracePeriod: 15 * time.Second, LiveMaxAge: time.Minute}, zap.NewNop())
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueConti, driver("u1", "3", "C-3", domain.UserTypeTaxi)))

	var circle domain.CircularRegion
	for _, r := range f.reg.Regions() {
		if r.Identifier == domain.QueueConti {
			circle = r
		}
	}
	require.Equal(t, domain.QueueConti, circle.Identifier)

	exit := domain.RegionEvent{Region: domain.QueueConti, Kind: domain.RegionExit, Timestamp: f.clk.Now()}

	// свежая точка в круге - ложный выход
	f.live.On("Get", mock.Anything, "u1").Return(&domain.LiveLocation{
		UID: "u1", Lat: circle.Center.Lat, Lng: circle.Center.Lng, Timestamp: f.clk.Now().Add(-10 * time.Second),
	}, nil).Once()
	require.NoError(t, tracking.HandleRegionEvent(ctx, f.local, exit))
	snap, err := f.queue.Snapshot(ctx, domain.QueueConti)
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)

	// точка в круге, но устаревшая
	f.live.On("Get", mock.Anything, "u1").Return(&domain.LiveLocation{
		UID: "u1", Lat: circle.Center.Lat, Lng: circle.Center.Lng, Timestamp: f.clk.Now().Add(-5 * time.Minute),
	}, nil).Once()
	require.NoError(t, tracking.HandleRegionEvent(ctx, f.local, exit))
	snap, err = f.queue.Snapshot(ctx, domain.QueueConti)
	require.NoError(t, err)
	assert.Empty(t, snap.Members)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyZoneExit}, f.notifier.kinds())
}

func TestTrackingUseCase_StartFailsClosedWithoutPermission(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.Set(ctx, domain.KeyForegroundGranted, "granted"))

	ok, err := f.tracking.StartLocationTracking(ctx, f.local)
	require.NoError(t, err)
	assert.False(t, ok)

	registered, err := f.scheduler.IsRegistered(ctx, domain.DeviceKey("u1", ""), domain.TaskLocationUpdates)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestTrackingUseCase_StartRegistersActiveRegion(t *testing.T) {
	f := newTrackingFixture(t)
	ctx := context.Background()
	f.grantAll(t)
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueKozmo, driver("u1", "3", "KZM-003", domain.UserTypeTaxi)))

	ok, err := f.tracking.StartLocationTracking(ctx, f.local)
	require.NoError(t, err)
	require.True(t, ok)

	regions, err := f.scheduler.Regions(ctx, domain.DeviceKey("u1", ""), domain.TaskGeofencing)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, domain.QueueKozmo, regions[0].Identifier)

	// смена очереди перерегистрирует круг
	require.NoError(t, f.queue.CheckIn(ctx, f.sess, domain.QueueConti, driver("u1", "3", "KZM-003", domain.UserTypeTaxi)))
	regions, err = f.scheduler.Regions(ctx, domain.DeviceKey("u1", ""), domain.TaskGeofencing)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, domain.QueueConti, regions[0].Identifier)

	require.NoError(t, f.tracking.StopLocationTracking(ctx, f.local))
	registered, err := f.scheduler.IsRegistered(ctx, domain.DeviceKey("u1", ""), domain.TaskGeofencing)
	require.NoError(t, err)
	assert.False(t, registered)

	// повторная остановка без задач не ошибка
	require.NoError(t, f.tracking.StopLocationTracking(ctx, f.local))
}
