package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/pkg/geometry"
	"github.com/droszt-service/internal/zone"
)

// PresenceChecker отвечает, находится ли водитель в полигоне стоянки
type PresenceChecker interface {
	InZone(ctx context.Context, uid, zoneName string) (bool, error)
}

// LivePresence проверяет последнюю опубликованную координату водителя
type LivePresence struct {
	live     repository.LiveLocationRepository
	registry *zone.Registry
	clock    clock.Clock
	maxAge   time.Duration
}

// NewLivePresence; maxAge == 0 отключает проверку свежести точки
func NewLivePresence(live repository.LiveLocationRepository, registry *zone.Registry, clk clock.Clock, maxAge time.Duration) *LivePresence {
	return &LivePresence{live: live, registry: registry, clock: clk, maxAge: maxAge}
}

func (p *LivePresence) InZone(ctx context.Context, uid, zoneName string) (bool, error) {
	z, ok := p.registry.Zone(zoneName)
	if !ok {
		// зона без полигона не ограничивает
		return true, nil
	}

	loc, err := p.live.Get(ctx, uid)
	if errors.Is(err, domain.ErrLocationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read live location: %w", err)
	}
	if p.maxAge > 0 && p.clock.Now().Sub(loc.Timestamp) > p.maxAge {
		return false, nil
	}

	return geometry.IsInside(domain.Point{Lat: loc.Lat, Lng: loc.Lng}, z.Polygon), nil
}

// runningChecker - источник статуса, который может быть не запущен
type runningChecker interface {
	PresenceChecker
	Running() bool
}

// FallbackPresence берёт статус у работающего геофенса, иначе у запасной проверки
type FallbackPresence struct {
	Primary   runningChecker
	Secondary PresenceChecker
}

func (p FallbackPresence) InZone(ctx context.Context, uid, zoneName string) (bool, error) {
	if p.Primary != nil && p.Primary.Running() {
		return p.Primary.InZone(ctx, uid, zoneName)
	}
	if p.Secondary == nil {
		return false, nil
	}
	return p.Secondary.InZone(ctx, uid, zoneName)
}
