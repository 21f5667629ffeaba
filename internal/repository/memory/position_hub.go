package memory

import (
	"context"
	"sync"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// PositionHub раздаёт входящие точки подписчикам конкретной установки (domain.DeviceKey).
// Точки приходят через HTTP ingest или из Redis Stream.
type PositionHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.LocationSample]struct{}
}

func NewPositionHub() *PositionHub {
	return &PositionHub{subs: make(map[string]map[chan domain.LocationSample]struct{})}
}

// Publish отдаёт точку всем подписчикам установки; медленные подписчики пропускают точку
func (h *PositionHub) Publish(sample domain.LocationSample) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[domain.DeviceKey(sample.UID, sample.Device)] {
		select {
		case ch <- sample:
		default:
		}
	}
}

func (h *PositionHub) subscribe(ctx context.Context, key string) <-chan domain.LocationSample {
	ch := make(chan domain.LocationSample, 16)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan domain.LocationSample]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[key], ch)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Provider - PositionProvider одной установки.
// Разрешения читаются из durable хранилища устройства.
func (h *PositionHub) Provider(deviceKey string, local repository.LocalStore) repository.PositionProvider {
	return &hubProvider{hub: h, key: deviceKey, local: local}
}

type hubProvider struct {
	hub   *PositionHub
	key   string
	local repository.LocalStore
}

func (p *hubProvider) RequestForegroundPermission(ctx context.Context) (bool, error) {
	return p.granted(ctx, domain.KeyForegroundGranted)
}

func (p *hubProvider) RequestBackgroundPermission(ctx context.Context) (bool, error) {
	return p.granted(ctx, domain.KeyBackgroundGranted)
}

func (p *hubProvider) granted(ctx context.Context, key string) (bool, error) {
	v, err := p.local.Get(ctx, key)
	if err == domain.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "granted", nil
}

func (p *hubProvider) Watch(ctx context.Context, _ domain.WatchOptions) (<-chan domain.LocationSample, error) {
	return p.hub.subscribe(ctx, p.key), nil
}
