package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/observability"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/zone"
)

// Device - рантайм одной установки водителя в процессе
type Device struct {
	Session  *Session
	Geofence *GeofenceService
}

type DeviceConfig struct {
	EnforceCheckin bool
	Geofence       GeofenceConfig
}

// DeviceManager создаёт и сносит рантаймы устройств
type DeviceManager struct {
	locals    repository.LocalStoreFactory
	positions PositionSource
	registry  *zone.Registry
	queue     *QueueUseCase
	heartbeat *HeartbeatUseCase
	guard     *SessionGuard
	signOut   *SignOutUseCase
	notifier  repository.Notifier
	fallback  PresenceChecker
	clock     clock.Clock
	cfg       DeviceConfig
	logger    *zap.Logger

	mu      sync.RWMutex
	devices map[string]*Device
}

func NewDeviceManager(
	locals repository.LocalStoreFactory,
	positions PositionSource,
	registry *zone.Registry,
	queue *QueueUseCase,
	heartbeat *HeartbeatUseCase,
	guard *SessionGuard,
	signOut *SignOutUseCase,
	notifier repository.Notifier,
	fallback PresenceChecker,
	clk clock.Clock,
	cfg DeviceConfig,
	logger *zap.Logger,
) *DeviceManager {
	m := &DeviceManager{
		locals:    locals,
		positions: positions,
		registry:  registry,
		queue:     queue,
		heartbeat: heartbeat,
		guard:     guard,
		signOut:   signOut,
		notifier:  notifier,
		fallback:  fallback,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
		devices:   make(map[string]*Device),
	}
	signOut.Bind(m, m.Teardown)
	return m
}

// Session реализует SessionLookup
func (m *DeviceManager) Session(deviceKey string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[deviceKey]
	if !ok {
		return nil, false
	}
	return d.Session, true
}

func (m *DeviceManager) Device(deviceKey string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[deviceKey]
	return d, ok
}

// Local - durable хранилище установки
func (m *DeviceManager) Local(actor domain.Actor) repository.LocalStore {
	return m.locals.ForDevice(actor.UID, actor.Device)
}

// Active - установки с рантаймом, по возрастанию ключа
func (m *DeviceManager) Active() []domain.Actor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Actor, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d.Session.Actor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceKey() < out[j].DeviceKey() })
	return out
}

// BeginSession - вход водителя на установке: новый токен сессии, свежий рантайм.
// Рантаймы других установок того же водителя не трогаются: их наблюдение
// за профилем увидит более новый токен и выполнит принудительный выход.
func (m *DeviceManager) BeginSession(ctx context.Context, actor domain.Actor) (*Device, int64, error) {
	actor.Device = domain.NormalizeDevice(actor.Device)
	m.Teardown(actor.DeviceKey())

	local, err := m.identify(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	admin := "false"
	if actor.Admin {
		admin = "true"
	}
	if err := local.Set(ctx, domain.KeyIsAdmin, admin); err != nil {
		return nil, 0, fmt.Errorf("failed to store role: %w", err)
	}

	token, err := m.guard.BeginSession(ctx, actor.UID, local)
	if err != nil {
		return nil, 0, err
	}

	d := m.build(actor, local)
	if err := m.guard.Watch(actor, local); err != nil {
		m.logger.Warn("session watch unavailable", zap.String("uid", actor.UID), zap.Error(err))
	}
	if err := m.heartbeat.Touch(ctx, local); err != nil {
		m.logger.Warn("failed to touch heartbeat", zap.String("uid", actor.UID), zap.Error(err))
	}
	return d, token, nil
}

// Ensure возвращает рантайм установки, создавая его без нового токена сессии
func (m *DeviceManager) Ensure(ctx context.Context, actor domain.Actor) (*Device, error) {
	actor.Device = domain.NormalizeDevice(actor.Device)
	if d, ok := m.Device(actor.DeviceKey()); ok {
		return d, nil
	}
	local, err := m.identify(ctx, actor)
	if err != nil {
		return nil, err
	}
	return m.build(actor, local), nil
}

// identify привязывает хранилище установки к водителю
func (m *DeviceManager) identify(ctx context.Context, actor domain.Actor) (repository.LocalStore, error) {
	local := m.Local(actor)
	if err := local.Set(ctx, domain.KeyUserID, actor.UID); err != nil {
		return nil, fmt.Errorf("failed to store identity: %w", err)
	}
	if err := local.Set(ctx, domain.KeyDeviceID, actor.Device); err != nil {
		return nil, fmt.Errorf("failed to store device id: %w", err)
	}
	return local, nil
}

func (m *DeviceManager) build(actor domain.Actor, local repository.LocalStore) *Device {
	key := actor.DeviceKey()
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[key]; ok {
		return d
	}

	geo := NewGeofenceService(
		actor.UID,
		m.positions.Provider(key, local),
		m.registry,
		m.clock,
		m.cfg.Geofence,
		func(ctx context.Context, zoneName string) { m.onZoneExit(ctx, key, zoneName) },
		m.logger,
	)
	sess := NewSession(actor, local, m.cfg.EnforceCheckin)
	sess.Presence = FallbackPresence{Primary: geo, Secondary: m.fallback}

	d := &Device{Session: sess, Geofence: geo}
	m.devices[key] = d
	observability.ActiveDevices.Inc()
	m.logger.Info("device runtime created", zap.String("uid", actor.UID), zap.String("device", actor.Device))
	return d
}

// Teardown останавливает геофенс, heartbeat и наблюдение за сессией установки
func (m *DeviceManager) Teardown(deviceKey string) {
	m.mu.Lock()
	d, ok := m.devices[deviceKey]
	delete(m.devices, deviceKey)
	m.mu.Unlock()

	m.guard.Unwatch(deviceKey)
	m.heartbeat.Stop(deviceKey)
	if !ok {
		return
	}
	d.Geofence.Stop()
	observability.ActiveDevices.Dec()
	m.logger.Info("device runtime removed", zap.String("device", deviceKey))
}

// Shutdown сносит все рантаймы при остановке процесса
func (m *DeviceManager) Shutdown() {
	for _, a := range m.Active() {
		m.Teardown(a.DeviceKey())
	}
}

// onZoneExit - подтверждённый выход из зоны: снять со всех очередей этой зоны
func (m *DeviceManager) onZoneExit(ctx context.Context, deviceKey, zoneName string) {
	d, ok := m.Device(deviceKey)
	if !ok {
		return
	}
	sess := d.Session
	uid := sess.Actor.UID

	rec, err := loadActiveRecord(ctx, sess.Local)
	if err != nil {
		m.logger.Warn("active check-in unreadable", zap.String("uid", uid), zap.Error(err))
	}
	if rec != nil && !rec.EnforceGeofence {
		return
	}

	removedAny := false
	for _, ref := range m.registry.QueuesForGeofence(zoneName) {
		removed, err := m.queue.ForceExit(ctx, sess, ref.Name, ReasonGeofence)
		if err != nil {
			m.logger.Error("zone exit checkout failed",
				zap.String("uid", uid),
				zap.String("queue", ref.Name),
				zap.Error(err),
			)
			continue
		}
		removedAny = removedAny || removed
	}
	if !removedAny {
		return
	}

	observability.GeofenceExits.Inc()
	if err := m.notifier.Notify(ctx, zoneExitNotification(uid, sess.Actor.Device, m.clock.Now())); err != nil {
		observability.NotificationErr.Inc()
		m.logger.Warn("zone exit notification failed", zap.String("uid", uid), zap.Error(err))
	}
}
