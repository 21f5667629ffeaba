package memory

import (
	"context"
	"sync"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// LocalStore - хранилище устройства в памяти
type LocalStore struct {
	mu   sync.Mutex
	data map[string]string
}

var _ repository.LocalStore = (*LocalStore)(nil)

func NewLocalStore() *LocalStore {
	return &LocalStore{data: make(map[string]string)}
}

func (s *LocalStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (s *LocalStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// LocalStoreFactory выдаёт по одному LocalStore на установку
type LocalStoreFactory struct {
	mu     sync.Mutex
	stores map[string]*LocalStore
}

func NewLocalStoreFactory() *LocalStoreFactory {
	return &LocalStoreFactory{stores: make(map[string]*LocalStore)}
}

func (f *LocalStoreFactory) ForDevice(uid, device string) repository.LocalStore {
	key := domain.DeviceKey(uid, device)
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[key]
	if !ok {
		s = NewLocalStore()
		f.stores[key] = s
	}
	return s
}
