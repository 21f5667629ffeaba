package heartbeat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/repository/memory"
	"github.com/droszt-service/internal/worker/heartbeat"
)

type devices struct {
	actors []domain.Actor
	locals *memory.LocalStoreFactory
}

func (d devices) Active() []domain.Actor { return d.actors }
func (d devices) Local(a domain.Actor) repository.LocalStore {
	return d.locals.ForDevice(a.UID, a.Device)
}

type checkRecorder struct {
	checked []string
	fail    map[string]bool
}

func (c *checkRecorder) Check(_ context.Context, uid string, _ repository.LocalStore) error {
	c.checked = append(c.checked, uid)
	if c.fail[uid] {
		return errors.New("store down")
	}
	return nil
}

// mockEnforcer стирает идентичность, как это делает принудительный выход
type mockEnforcer struct {
	signedOut []string
}

func (m *mockEnforcer) EnforceIntegrity(ctx context.Context, uid string, local repository.LocalStore) error {
	flag, _ := local.Get(ctx, domain.KeyMockedLocation)
	if flag != "true" {
		return nil
	}
	m.signedOut = append(m.signedOut, uid)
	return local.Delete(ctx, domain.KeyUserID, domain.KeyMockedLocation)
}

func newDevices(t *testing.T, uids ...string) devices {
	t.Helper()
	d := devices{locals: memory.NewLocalStoreFactory()}
	for _, uid := range uids {
		a := domain.Actor{UID: uid, Device: domain.DefaultDevice}
		d.actors = append(d.actors, a)
		require.NoError(t, d.Local(a).Set(context.Background(), domain.KeyUserID, uid))
	}
	return d
}

func TestWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	devs := newDevices(t, "u1", "u2", "u3")
	require.NoError(t, devs.Local(domain.Actor{UID: "u2"}).Set(ctx, domain.KeyMockedLocation, "true"))

	checker := &checkRecorder{fail: map[string]bool{"u1": true}}
	enforcer := &mockEnforcer{}
	w := heartbeat.NewWorker(devs, checker, enforcer, "0 * * * * *", zap.NewNop())

	w.RunOnce(ctx)

	assert.Equal(t, []string{"u2"}, enforcer.signedOut)
	// u2 выкинут до проверки неактивности, сбой u1 не мешает u3
	assert.Equal(t, []string{"u1", "u3"}, checker.checked)
}

func TestWorker_RunOnceAfterStop(t *testing.T) {
	checker := &checkRecorder{}
	w := heartbeat.NewWorker(newDevices(t, "u1"), checker, nil, "0 * * * * *", zap.NewNop())
	require.NoError(t, w.Stop())

	w.RunOnce(context.Background())
	assert.Empty(t, checker.checked)
}

func TestWorker_InvalidSchedule(t *testing.T) {
	w := heartbeat.NewWorker(newDevices(t), &checkRecorder{}, nil, "not a schedule", zap.NewNop())
	assert.Error(t, w.Start(context.Background()))
}

func TestWorker_StopEndsStart(t *testing.T) {
	w := heartbeat.NewWorker(newDevices(t), &checkRecorder{}, nil, "*/1 * * * * *", zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("heartbeat worker did not stop")
	}
}
