package memory

import (
	"context"
	"sync"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// TaskScheduler - регистрации фоновых задач в памяти
type TaskScheduler struct {
	mu      sync.Mutex
	options map[string]domain.WatchOptions
	regions map[string][]domain.CircularRegion
}

var _ repository.TaskScheduler = (*TaskScheduler)(nil)

func NewTaskScheduler() *TaskScheduler {
	return &TaskScheduler{
		options: make(map[string]domain.WatchOptions),
		regions: make(map[string][]domain.CircularRegion),
	}
}

func taskKey(uid, task string) string {
	return uid + "/" + task
}

func (s *TaskScheduler) StartLocationUpdates(_ context.Context, uid, task string, opts domain.WatchOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[taskKey(uid, task)] = opts
	return nil
}

func (s *TaskScheduler) StartGeofencing(_ context.Context, uid, task string, regions []domain.CircularRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[taskKey(uid, task)] = append([]domain.CircularRegion(nil), regions...)
	return nil
}

func (s *TaskScheduler) StopLocationUpdates(_ context.Context, uid, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.options[taskKey(uid, task)]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(s.options, taskKey(uid, task))
	return nil
}

func (s *TaskScheduler) StopGeofencing(_ context.Context, uid, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regions[taskKey(uid, task)]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(s.regions, taskKey(uid, task))
	return nil
}

func (s *TaskScheduler) IsRegistered(_ context.Context, uid, task string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, a := s.options[taskKey(uid, task)]
	_, b := s.regions[taskKey(uid, task)]
	return a || b, nil
}

func (s *TaskScheduler) Regions(_ context.Context, uid, task string) ([]domain.CircularRegion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[taskKey(uid, task)]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return append([]domain.CircularRegion(nil), r...), nil
}
