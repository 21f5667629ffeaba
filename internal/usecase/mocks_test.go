package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/geometry"
	"github.com/droszt-service/internal/usecase"
	"github.com/droszt-service/internal/zone"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) SetSessionToken(ctx context.Context, uid string, token int64) error {
	return m.Called(ctx, uid, token).Error(0)
}

func (m *MockProfileRepository) Watch(ctx context.Context, uid string) (<-chan domain.Profile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan domain.Profile), args.Error(1)
}

type MockLiveLocationRepository struct {
	mock.Mock
}

func (m *MockLiveLocationRepository) Upsert(ctx context.Context, loc domain.LiveLocation) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *MockLiveLocationRepository) Get(ctx context.Context, uid string) (*domain.LiveLocation, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LiveLocation), args.Error(1)
}

func (m *MockLiveLocationRepository) Delete(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

// recordingNotifier запоминает уведомления
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

type MockSignOuter struct {
	mock.Mock
}

func (m *MockSignOuter) ForcedSignOut(ctx context.Context, uid string, local repository.LocalStore, cause usecase.SignOutCause) error {
	return m.Called(uid, cause).Error(0)
}

type MockRevoker struct {
	mock.Mock
}

func (m *MockRevoker) Revoke(ctx context.Context, deviceKey string, at time.Time) error {
	return m.Called(deviceKey).Error(0)
}

// stubPresence отвечает заранее заданным статусом зоны
type stubPresence struct {
	inside map[string]bool
}

func (p stubPresence) InZone(_ context.Context, _ string, zoneName string) (bool, error) {
	return p.inside[zoneName], nil
}

func testRegistry(t *testing.T) *zone.Registry {
	t.Helper()
	reg, err := zone.Default()
	require.NoError(t, err)
	return reg
}

// insidePoint - центр масс вершин; для всех стоянок он внутри полигона
func insidePoint(t *testing.T, reg *zone.Registry, name string) domain.Point {
	t.Helper()
	z, ok := reg.Zone(name)
	require.True(t, ok)
	p := geometry.Centroid(z.Polygon)
	require.True(t, geometry.IsInside(p, z.Polygon))
	return p
}

var farAway = domain.Point{Lat: 47.60, Lng: 19.30}

func driver(uid, username, plate string, t domain.UserType) domain.QueueMember {
	return domain.QueueMember{UID: uid, Username: username, LicensePlate: plate, UserType: t, CheckInTime: "08:00"}
}

func names(members []domain.QueueMember) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.DisplayName())
	}
	return out
}
