package usecase

import (
	"sync"

	"github.com/droszt-service/internal/domain"
)

// UndoTracker - один слот последнего собственного checkout
type UndoTracker struct {
	mu      sync.Mutex
	memento *domain.CheckoutMemento
}

func NewUndoTracker() *UndoTracker {
	return &UndoTracker{}
}

// Set перезаписывает слот
func (t *UndoTracker) Set(m domain.CheckoutMemento) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.memento = &m
}

func (t *UndoTracker) Get() (domain.CheckoutMemento, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.memento == nil {
		return domain.CheckoutMemento{}, false
	}
	return *t.memento, true
}

func (t *UndoTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.memento = nil
}
