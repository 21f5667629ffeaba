package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/usecase"
)

func TestLivePresence(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	inside := insidePoint(t, reg, domain.QueueConti)

	live := &MockLiveLocationRepository{}
	live.On("Get", mock.Anything, "fresh").Return(&domain.LiveLocation{UID: "fresh", Lat: inside.Lat, Lng: inside.Lng, Timestamp: clk.Now()}, nil)
	live.On("Get", mock.Anything, "stale").Return(&domain.LiveLocation{UID: "stale", Lat: inside.Lat, Lng: inside.Lng, Timestamp: clk.Now().Add(-time.Hour)}, nil)
	live.On("Get", mock.Anything, "missing").Return(nil, domain.ErrLocationNotFound)

	p := usecase.NewLivePresence(live, reg, clk, 5*time.Minute)

	ok, err := p.InZone(ctx, "fresh", domain.QueueConti)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.InZone(ctx, "fresh", domain.QueueKozmo)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.InZone(ctx, "stale", domain.QueueConti)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.InZone(ctx, "missing", domain.QueueConti)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.InZone(ctx, "missing", "unbounded")
	require.NoError(t, err)
	assert.True(t, ok)
}

type fakeRunning struct {
	running bool
	inside  bool
}

func (f fakeRunning) Running() bool { return f.running }

func (f fakeRunning) InZone(context.Context, string, string) (bool, error) { return f.inside, nil }

func TestFallbackPresence(t *testing.T) {
	ctx := context.Background()
	secondary := stubPresence{inside: map[string]bool{domain.QueueKozmo: true}}

	ok, _ := usecase.FallbackPresence{Primary: fakeRunning{running: true, inside: false}, Secondary: secondary}.InZone(ctx, "u1", domain.QueueKozmo)
	assert.False(t, ok)

	ok, _ = usecase.FallbackPresence{Primary: fakeRunning{running: false}, Secondary: secondary}.InZone(ctx, "u1", domain.QueueKozmo)
	assert.True(t, ok)

	ok, _ = usecase.FallbackPresence{}.InZone(ctx, "u1", domain.QueueKozmo)
	assert.False(t, ok)
}
