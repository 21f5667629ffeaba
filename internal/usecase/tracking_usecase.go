package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/observability"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/pkg/geometry"
	"github.com/droszt-service/internal/zone"
)

// PositionSource выдаёт PositionProvider установки по domain.DeviceKey
type PositionSource interface {
	Provider(deviceKey string, local repository.LocalStore) repository.PositionProvider
}

// HeartbeatChecker - проверка неактивности из фоновой задачи
type HeartbeatChecker interface {
	Check(ctx context.Context, uid string, local repository.LocalStore) error
}

type TrackingConfig struct {
	GracePeriod time.Duration
	// LiveMaxAge - насколько старой может быть живая координата для сверки
	// нативного выхода; 0 - не сверять
	LiveMaxAge time.Duration
	Watch      domain.WatchOptions
}

// TrackingUseCase - точки входа фоновой задачи. Всё состояние берётся
// из durable хранилища устройства, вызов может прийти в свежий процесс.
type TrackingUseCase struct {
	queue     *QueueUseCase
	live      repository.LiveLocationRepository
	publisher repository.LocationPublisher
	heartbeat HeartbeatChecker
	scheduler repository.TaskScheduler
	positions PositionSource
	notifier  repository.Notifier
	registry  *zone.Registry
	sessions  SessionLookup
	clock     clock.Clock
	cfg       TrackingConfig
	logger    *zap.Logger
}

func NewTrackingUseCase(
	queue *QueueUseCase,
	live repository.LiveLocationRepository,
	scheduler repository.TaskScheduler,
	positions PositionSource,
	notifier repository.Notifier,
	registry *zone.Registry,
	clk clock.Clock,
	cfg TrackingConfig,
	logger *zap.Logger,
) *TrackingUseCase {
	return &TrackingUseCase{
		queue:     queue,
		live:      live,
		scheduler: scheduler,
		positions: positions,
		notifier:  notifier,
		registry:  registry,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithPublisher включает внешнюю ленту живых координат
func (uc *TrackingUseCase) WithPublisher(p repository.LocationPublisher) *TrackingUseCase {
	uc.publisher = p
	return uc
}

func (uc *TrackingUseCase) WithHeartbeat(h HeartbeatChecker) *TrackingUseCase {
	uc.heartbeat = h
	return uc
}

func (uc *TrackingUseCase) WithSessions(l SessionLookup) *TrackingUseCase {
	uc.sessions = l
	return uc
}

// HandleSample обрабатывает точку фоновой задачи. Все шаги выполняются
// даже при сбое предыдущих, ошибки собираются вместе.
func (uc *TrackingUseCase) HandleSample(ctx context.Context, local repository.LocalStore, sample domain.LocationSample) error {
	uid, err := storedUID(ctx, local)
	if err != nil {
		return fmt.Errorf("failed to read identity: %w", err)
	}
	if uid == "" {
		uc.logger.Debug("sample for signed out device ignored", zap.String("sample_uid", sample.UID))
		return nil
	}
	log := uc.logger.With(zap.String("uid", uid))

	at := sample.Timestamp
	if at.IsZero() {
		at = uc.clock.Now()
	}
	observability.SamplesTotal.WithLabelValues("background").Inc()

	var errs []error
	if err := uc.detectMock(ctx, local, sample); err != nil {
		log.Warn("mock detection failed", zap.Error(err))
		errs = append(errs, err)
	}
	if err := uc.publishLive(ctx, uid, sample.Point, at); err != nil {
		log.Warn("live location publish failed", zap.Error(err))
		errs = append(errs, err)
	}
	if uc.heartbeat != nil {
		if err := uc.heartbeat.Check(ctx, uid, local); err != nil {
			log.Warn("heartbeat check failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := uc.checkGeofence(ctx, uid, local, sample.Point, at); err != nil {
		log.Warn("geofence check failed", zap.Error(err))
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (uc *TrackingUseCase) detectMock(ctx context.Context, local repository.LocalStore, sample domain.LocationSample) error {
	if !sample.Mocked {
		return local.Delete(ctx, domain.KeyMockedLocation)
	}
	admin, err := local.Get(ctx, domain.KeyIsAdmin)
	if err != nil && err != domain.ErrKeyNotFound {
		return err
	}
	if admin == "true" {
		return nil
	}
	observability.MockedSamples.Inc()
	return local.Set(ctx, domain.KeyMockedLocation, "true")
}

func (uc *TrackingUseCase) publishLive(ctx context.Context, uid string, p domain.Point, at time.Time) error {
	loc := domain.LiveLocation{UID: uid, Lat: p.Lat, Lng: p.Lng, Timestamp: at}
	if err := uc.live.Upsert(ctx, loc); err != nil {
		return err
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

// checkGeofence - проверка по активной записи с отметкой первого выхода в хранилище
func (uc *TrackingUseCase) checkGeofence(ctx context.Context, uid string, local repository.LocalStore, p domain.Point, at time.Time) error {
	rec, err := loadActiveRecord(ctx, local)
	if err != nil {
		return err
	}
	if rec == nil || !rec.EnforceGeofence {
		return local.Delete(ctx, domain.KeyFirstOutside)
	}
	z, ok := uc.registry.Zone(rec.GeofenceZone)
	if !ok {
		return nil
	}

	if geometry.IsInside(p, z.Polygon) {
		return local.Delete(ctx, domain.KeyFirstOutside)
	}

	raw, err := local.Get(ctx, domain.KeyFirstOutside)
	if err == domain.ErrKeyNotFound {
		return local.Set(ctx, domain.KeyFirstOutside, strconv.FormatInt(at.UnixMilli(), 10))
	}
	if err != nil {
		return err
	}
	firstMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return local.Set(ctx, domain.KeyFirstOutside, strconv.FormatInt(at.UnixMilli(), 10))
	}
	if at.Sub(time.UnixMilli(firstMs)) < uc.cfg.GracePeriod {
		return nil
	}
	return uc.forceCheckout(ctx, uid, local, rec)
}

// HandleRegionEvent - выход из нативного круга активной зоны.
// Выход не засчитывается, если свежая живая координата ещё внутри круга.
func (uc *TrackingUseCase) HandleRegionEvent(ctx context.Context, local repository.LocalStore, ev domain.RegionEvent) error {
	if ev.Kind != domain.RegionExit {
		return nil
	}
	uid, err := storedUID(ctx, local)
	if err != nil || uid == "" {
		return err
	}
	observability.SamplesTotal.WithLabelValues("region").Inc()

	rec, err := loadActiveRecord(ctx, local)
	if err != nil {
		return err
	}
	if rec == nil || !rec.EnforceGeofence || rec.GeofenceZone != ev.Region {
		return nil
	}
	if uc.stillInside(ctx, uid, ev) {
		return nil
	}
	return uc.forceCheckout(ctx, uid, local, rec)
}

// stillInside сверяет нативный выход с последней живой координатой
func (uc *TrackingUseCase) stillInside(ctx context.Context, uid string, ev domain.RegionEvent) bool {
	if uc.cfg.LiveMaxAge <= 0 {
		return false
	}
	region, ok := uc.region(ev.Region)
	if !ok {
		return false
	}
	loc, err := uc.live.Get(ctx, uid)
	if err != nil {
		if !stderrors.Is(err, domain.ErrLocationNotFound) {
			uc.logger.Warn("live location unavailable", zap.String("uid", uid), zap.Error(err))
		}
		return false
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = uc.clock.Now()
	}
	if at.Sub(loc.Timestamp) > uc.cfg.LiveMaxAge {
		return false
	}
	p := domain.Point{Lat: loc.Lat, Lng: loc.Lng}
	if !geometry.InCircle(p, region) {
		return false
	}
	uc.logger.Info("region exit not confirmed by live location",
		zap.String("uid", uid),
		zap.String("region", region.Identifier),
		zap.Float64("distance_m", geometry.DistanceMeters(p, region.Center)),
	)
	return true
}

func (uc *TrackingUseCase) region(id string) (domain.CircularRegion, bool) {
	for _, r := range uc.registry.Regions() {
		if r.Identifier == id {
			return r, true
		}
	}
	return domain.CircularRegion{}, false
}

func (uc *TrackingUseCase) forceCheckout(ctx context.Context, uid string, local repository.LocalStore, rec *domain.ActiveCheckinRecord) error {
	sess := sessionFor(ctx, uc.sessions, uid, local)

	var errs []error
	if _, err := uc.queue.ForceExit(ctx, sess, rec.QueueName, ReasonZoneExit); err != nil {
		errs = append(errs, err)
	}
	// запись очищается и при ошибке хранилища, иначе checkout повторится на каждой точке
	sess.Undo.Clear()
	if err := clearActiveRecord(ctx, local); err != nil {
		errs = append(errs, err)
	}
	observability.GeofenceExits.Inc()

	if err := uc.notifier.Notify(ctx, zoneExitNotification(uid, sess.Actor.Device, uc.clock.Now())); err != nil {
		observability.NotificationErr.Inc()
		errs = append(errs, err)
	}
	uc.logger.Info("checked out after leaving zone",
		zap.String("uid", uid),
		zap.String("queue", rec.QueueName),
		zap.String("zone", rec.GeofenceZone),
	)
	return stderrors.Join(errs...)
}

// StartLocationTracking регистрирует фоновую задачу и нативный круг активной зоны.
// Задачи ОС принадлежат установке. Без foreground или background разрешения
// возвращает false и ничего не регистрирует.
func (uc *TrackingUseCase) StartLocationTracking(ctx context.Context, local repository.LocalStore) (bool, error) {
	uid, err := storedUID(ctx, local)
	if err != nil {
		return false, err
	}
	if uid == "" {
		return false, nil
	}
	key := domain.DeviceKey(uid, storedDevice(ctx, local))
	provider := uc.positions.Provider(key, local)

	fg, err := provider.RequestForegroundPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to request foreground permission: %w", err)
	}
	if !fg {
		return false, nil
	}
	bg, err := provider.RequestBackgroundPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to request background permission: %w", err)
	}
	if !bg {
		return false, nil
	}

	if err := uc.stopTasks(ctx, key); err != nil {
		return false, err
	}
	if err := uc.scheduler.StartLocationUpdates(ctx, key, domain.TaskLocationUpdates, uc.cfg.Watch); err != nil {
		return false, fmt.Errorf("failed to start location updates: %w", err)
	}

	rec, err := loadActiveRecord(ctx, local)
	if err != nil {
		uc.logger.Warn("active check-in unreadable", zap.String("uid", uid), zap.Error(err))
	}
	if err := uc.registerRegion(ctx, key, rec); err != nil {
		return false, err
	}
	if err := local.Set(ctx, domain.KeyTrackingRegistered, "true"); err != nil {
		return false, err
	}

	uc.logger.Info("background tracking started", zap.String("uid", uid))
	return true, nil
}

// StopLocationTracking снимает обе задачи; незарегистрированная задача не ошибка
func (uc *TrackingUseCase) StopLocationTracking(ctx context.Context, local repository.LocalStore) error {
	uid, err := storedUID(ctx, local)
	if err != nil || uid == "" {
		return err
	}
	if err := uc.stopTasks(ctx, domain.DeviceKey(uid, storedDevice(ctx, local))); err != nil {
		return err
	}
	if err := local.Delete(ctx, domain.KeyTrackingRegistered); err != nil {
		return err
	}
	uc.logger.Info("background tracking stopped", zap.String("uid", uid))
	return nil
}

func (uc *TrackingUseCase) stopTasks(ctx context.Context, key string) error {
	if err := uc.scheduler.StopLocationUpdates(ctx, key, domain.TaskLocationUpdates); err != nil && !stderrors.Is(err, domain.ErrTaskNotFound) {
		return fmt.Errorf("failed to stop location updates: %w", err)
	}
	if err := uc.scheduler.StopGeofencing(ctx, key, domain.TaskGeofencing); err != nil && !stderrors.Is(err, domain.ErrTaskNotFound) {
		return fmt.Errorf("failed to stop geofencing: %w", err)
	}
	return nil
}

func (uc *TrackingUseCase) registerRegion(ctx context.Context, key string, rec *domain.ActiveCheckinRecord) error {
	if rec == nil || !rec.EnforceGeofence {
		return nil
	}
	region, ok := uc.region(rec.GeofenceZone)
	if !ok {
		return nil
	}
	if err := uc.scheduler.StartGeofencing(ctx, key, domain.TaskGeofencing, []domain.CircularRegion{region}); err != nil {
		return fmt.Errorf("failed to start geofencing: %w", err)
	}
	return nil
}

// OnActiveRecordChanged перерегистрирует нативный круг под новую активную зону
func (uc *TrackingUseCase) OnActiveRecordChanged(ctx context.Context, uid string, local repository.LocalStore, rec *domain.ActiveCheckinRecord) {
	registered, err := local.Get(ctx, domain.KeyTrackingRegistered)
	if err != nil || registered != "true" {
		return
	}
	key := domain.DeviceKey(uid, storedDevice(ctx, local))
	if err := uc.scheduler.StopGeofencing(ctx, key, domain.TaskGeofencing); err != nil && !stderrors.Is(err, domain.ErrTaskNotFound) {
		uc.logger.Warn("failed to stop geofencing", zap.String("uid", uid), zap.Error(err))
		return
	}
	if err := uc.registerRegion(ctx, key, rec); err != nil {
		uc.logger.Warn("failed to register region", zap.String("uid", uid), zap.Error(err))
	}
}

func zoneExitNotification(uid, device string, now time.Time) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		UID:       uid,
		Device:    device,
		Kind:      domain.NotifyZoneExit,
		Title:     "Automatikus Kijelentkezés",
		Body:      "Elhagytad a zónát, ezért a rendszer kijelentkeztetett.",
		CreatedAt: now,
	}
}
