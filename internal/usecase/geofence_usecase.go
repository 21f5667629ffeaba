package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/pkg/geometry"
	"github.com/droszt-service/internal/zone"
)

// StatusHandler получает смену статуса зоны
type StatusHandler func(zone string, inside bool)

// ZoneExitHandler вызывается, когда водитель пробыл вне зоны весь grace period
type ZoneExitHandler func(ctx context.Context, zone string)

type GeofenceConfig struct {
	GracePeriod  time.Duration
	AutoCheckout bool
	Watch        domain.WatchOptions
}

type graceTimer struct {
	timer clock.Timer
	id    uint64
}

// GeofenceService следит за позицией одного устройства и статусом каждой зоны.
// Статус зоны в начале false и меняется только по реальным точкам.
type GeofenceService struct {
	uid      string
	provider repository.PositionProvider
	zones    []domain.Zone
	clock    clock.Clock
	cfg      GeofenceConfig
	onExit   ZoneExitHandler
	logger   *zap.Logger

	// evalMu упорядочивает точки; effectMu держат эффекты, Stop ждёт их завершения
	evalMu   sync.Mutex
	effectMu sync.RWMutex

	mu           sync.Mutex
	running      bool
	epoch        uint64
	timerSeq     uint64
	cancel       context.CancelFunc
	status       map[string]bool
	firstOutside map[string]time.Time
	timers       map[string]graceTimer
	handlers     map[uint64]StatusHandler
	handlerSeq   uint64
}

func NewGeofenceService(
	uid string,
	provider repository.PositionProvider,
	registry *zone.Registry,
	clk clock.Clock,
	cfg GeofenceConfig,
	onExit ZoneExitHandler,
	logger *zap.Logger,
) *GeofenceService {
	s := &GeofenceService{
		uid:          uid,
		provider:     provider,
		zones:        registry.Zones(),
		clock:        clk,
		cfg:          cfg,
		onExit:       onExit,
		logger:       logger.With(zap.String("uid", uid)),
		status:       make(map[string]bool),
		firstOutside: make(map[string]time.Time),
		timers:       make(map[string]graceTimer),
		handlers:     make(map[uint64]StatusHandler),
	}
	s.resetStatusLocked()
	return s
}

// Start запускает подписку на позицию. Повторный вызов ничего не делает.
// Отказ в разрешении возвращает false без ошибки.
func (s *GeofenceService) Start(ctx context.Context) (bool, error) {
	if s.Running() {
		return true, nil
	}

	granted, err := s.provider.RequestForegroundPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to request location permission: %w", err)
	}
	if !granted {
		s.logger.Warn("foreground location permission denied")
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return true, nil
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	samples, err := s.provider.Watch(watchCtx, s.cfg.Watch)
	if err != nil {
		cancel()
		return false, fmt.Errorf("failed to watch position: %w", err)
	}

	s.running = true
	s.epoch++
	s.cancel = cancel
	s.resetStatusLocked()
	epoch := s.epoch

	go s.loop(samples, epoch)

	s.logger.Info("geofence started", zap.Int("zones", len(s.zones)))
	return true, nil
}

// Stop отменяет подписку и все таймеры. После возврата ни одного
// уведомления или checkout от прежнего запуска не произойдёт.
// Нельзя вызывать из StatusHandler.
func (s *GeofenceService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for name, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, name)
	}
	s.firstOutside = make(map[string]time.Time)
	s.mu.Unlock()

	// дождаться эффекта, который уже выполняется
	s.effectMu.Lock()
	s.effectMu.Unlock()

	s.logger.Info("geofence stopped")
}

func (s *GeofenceService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatus - последний известный статус; false для неизвестных зон
func (s *GeofenceService) GetStatus(zoneName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[zoneName]
}

// Statuses - копия статусов всех зон
func (s *GeofenceService) Statuses() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// InZone реализует PresenceChecker для устройства этого сервиса
func (s *GeofenceService) InZone(_ context.Context, _ string, zoneName string) (bool, error) {
	return s.GetStatus(zoneName), nil
}

// Subscribe регистрирует обработчик; возвращённая функция снимает именно его
func (s *GeofenceService) Subscribe(h StatusHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlerSeq++
	id := s.handlerSeq
	s.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

// Evaluate обрабатывает одну точку текущего запуска
func (s *GeofenceService) Evaluate(sample domain.LocationSample) {
	s.mu.Lock()
	epoch := s.epoch
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	s.evaluate(epoch, sample)
}

func (s *GeofenceService) loop(samples <-chan domain.LocationSample, epoch uint64) {
	for sample := range samples {
		s.evaluate(epoch, sample)
	}
}

type zoneChange struct {
	zone   string
	inside bool
}

func (s *GeofenceService) evaluate(epoch uint64, sample domain.LocationSample) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()
	s.effectMu.RLock()
	defer s.effectMu.RUnlock()

	s.mu.Lock()
	if !s.running || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	var changes []zoneChange
	for _, z := range s.zones {
		inside, ok := s.testZone(z, sample.Point)
		if !ok {
			continue
		}
		if s.status[z.Name] == inside {
			continue
		}
		s.status[z.Name] = inside
		changes = append(changes, zoneChange{zone: z.Name, inside: inside})
	}
	handlers := make([]StatusHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	if len(changes) == 0 {
		return
	}

	// уведомление всегда раньше таймера той же зоны
	for _, c := range changes {
		for _, h := range handlers {
			s.notify(h, c)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.epoch != epoch {
		return
	}
	for _, c := range changes {
		if c.inside {
			if t, ok := s.timers[c.zone]; ok {
				t.timer.Stop()
				delete(s.timers, c.zone)
			}
			delete(s.firstOutside, c.zone)
			continue
		}
		if _, armed := s.timers[c.zone]; armed {
			continue
		}
		s.timerSeq++
		id := s.timerSeq
		zoneName := c.zone
		s.firstOutside[zoneName] = s.clock.Now()
		s.timers[zoneName] = graceTimer{
			id:    id,
			timer: s.clock.AfterFunc(s.cfg.GracePeriod, func() { s.onGraceExpired(zoneName, epoch, id) }),
		}
		s.logger.Debug("left zone, grace period started",
			zap.String("zone", zoneName),
			zap.Duration("grace", s.cfg.GracePeriod),
		)
	}
}

// testZone изолирует сбой проверки одной зоны
func (s *GeofenceService) testZone(z domain.Zone, p domain.Point) (inside bool, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("zone evaluation panicked", zap.String("zone", z.Name), zap.Any("panic", r))
			inside, ok = false, false
		}
	}()
	return geometry.IsInside(p, z.Polygon), true
}

func (s *GeofenceService) notify(h StatusHandler, c zoneChange) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("status handler panicked", zap.String("zone", c.zone), zap.Any("panic", r))
		}
	}()
	h(c.zone, c.inside)
}

func (s *GeofenceService) onGraceExpired(zoneName string, epoch, id uint64) {
	s.effectMu.RLock()
	defer s.effectMu.RUnlock()

	s.mu.Lock()
	t, ok := s.timers[zoneName]
	if !ok || t.id != id || !s.running || s.epoch != epoch || s.status[zoneName] {
		s.mu.Unlock()
		return
	}
	delete(s.timers, zoneName)
	since := s.firstOutside[zoneName]
	delete(s.firstOutside, zoneName)
	auto := s.cfg.AutoCheckout
	s.mu.Unlock()

	s.logger.Info("outside zone for the whole grace period",
		zap.String("zone", zoneName),
		zap.Time("since", since),
		zap.Bool("auto_checkout", auto),
	)
	if auto && s.onExit != nil {
		s.onExit(context.Background(), zoneName)
	}
}

func (s *GeofenceService) resetStatusLocked() {
	s.status = make(map[string]bool, len(s.zones))
	for _, z := range s.zones {
		s.status[z.Name] = false
	}
}
