package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/repository/memory"
)

func TestPositionHub_DeliversOnlyToOwner(t *testing.T) {
	hub := memory.NewPositionHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := memory.NewLocalStore()
	ch, err := hub.Provider(domain.DeviceKey("u1", "phone"), local).Watch(ctx, domain.WatchOptions{})
	require.NoError(t, err)

	hub.Publish(domain.LocationSample{UID: "u2", Device: "phone", Point: domain.Point{Lat: 1, Lng: 1}})
	hub.Publish(domain.LocationSample{UID: "u1", Device: "tablet", Point: domain.Point{Lat: 2, Lng: 2}})
	hub.Publish(domain.LocationSample{UID: "u1", Device: "phone", Point: domain.Point{Lat: 47.49, Lng: 19.07}})

	select {
	case s := <-ch:
		assert.Equal(t, "u1", s.UID)
		assert.Equal(t, "phone", s.Device)
	case <-time.After(time.Second):
		t.Fatal("sample not delivered")
	}
}

func TestLocalStoreFactory_SeparatesDevices(t *testing.T) {
	f := memory.NewLocalStoreFactory()
	ctx := context.Background()

	require.NoError(t, f.ForDevice("u1", "phone").Set(ctx, domain.KeySessionToken, "100"))
	_, err := f.ForDevice("u1", "tablet").Get(ctx, domain.KeySessionToken)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	assert.Same(t, f.ForDevice("u1", ""), f.ForDevice("u1", domain.DefaultDevice))
}

func TestPositionHub_PermissionsFromLocalStore(t *testing.T) {
	hub := memory.NewPositionHub()
	ctx := context.Background()
	local := memory.NewLocalStore()
	p := hub.Provider(domain.DeviceKey("u1", ""), local)

	ok, err := p.RequestForegroundPermission(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, local.Set(ctx, domain.KeyForegroundGranted, "granted"))
	require.NoError(t, local.Set(ctx, domain.KeyBackgroundGranted, "denied"))

	ok, err = p.RequestForegroundPermission(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.RequestBackgroundPermission(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskScheduler_StopUnknownTask(t *testing.T) {
	s := memory.NewTaskScheduler()
	ctx := context.Background()

	assert.ErrorIs(t, s.StopLocationUpdates(ctx, "u1", domain.TaskLocationUpdates), domain.ErrTaskNotFound)

	require.NoError(t, s.StartGeofencing(ctx, "u1", domain.TaskGeofencing, []domain.CircularRegion{{Identifier: "Conti"}}))
	ok, err := s.IsRegistered(ctx, "u1", domain.TaskGeofencing)
	require.NoError(t, err)
	assert.True(t, ok)

	regions, err := s.Regions(ctx, "u1", domain.TaskGeofencing)
	require.NoError(t, err)
	assert.Len(t, regions, 1)
	require.NoError(t, s.StopGeofencing(ctx, "u1", domain.TaskGeofencing))
}
