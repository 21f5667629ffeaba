// Package memory - хранилища в памяти процесса для dev режима и тестов.
package memory

import (
	"context"
	"sync"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// DocumentRepository - документы очередей в памяти с подписками
type DocumentRepository struct {
	mu       sync.Mutex
	docs     map[string]*domain.QueueDocument
	watchers map[string]map[chan *domain.QueueDocument]struct{}
}

var _ repository.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		docs:     make(map[string]*domain.QueueDocument),
		watchers: make(map[string]map[chan *domain.QueueDocument]struct{}),
	}
}

func (r *DocumentRepository) Get(_ context.Context, name string) (*domain.QueueDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[name]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return cloneDoc(doc), nil
}

func (r *DocumentRepository) Create(_ context.Context, name string, field domain.QueueField, members []domain.QueueMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[name]; ok {
		return domain.ErrDocumentExists
	}
	doc := &domain.QueueDocument{Name: name}
	doc.SetList(field, append([]domain.QueueMember(nil), members...))
	r.docs[name] = doc
	r.publishLocked(name)
	return nil
}

func (r *DocumentRepository) ArrayUnion(_ context.Context, name string, field domain.QueueField, member domain.QueueMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[name]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	list := doc.List(field)
	for _, m := range list {
		if m == member {
			return nil
		}
	}
	doc.SetList(field, append(list, member))
	r.publishLocked(name)
	return nil
}

func (r *DocumentRepository) ArrayRemove(_ context.Context, name string, field domain.QueueField, member domain.QueueMember) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[name]
	if !ok {
		return false, nil
	}
	list := doc.List(field)
	for i, m := range list {
		if m == member {
			next := make([]domain.QueueMember, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			doc.SetList(field, next)
			r.publishLocked(name)
			return true, nil
		}
	}
	return false, nil
}

func (r *DocumentRepository) Replace(_ context.Context, name string, field domain.QueueField, members []domain.QueueMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[name]
	if !ok {
		doc = &domain.QueueDocument{Name: name}
		r.docs[name] = doc
	}
	doc.SetList(field, append([]domain.QueueMember(nil), members...))
	r.publishLocked(name)
	return nil
}

func (r *DocumentRepository) SetNotes(_ context.Context, name string, notes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[name]
	if !ok {
		doc = &domain.QueueDocument{Name: name}
		r.docs[name] = doc
	}
	doc.Notes = append([]string(nil), notes...)
	r.publishLocked(name)
	return nil
}

// Watch отдаёт текущий снимок и каждое следующее изменение.
// Медленный подписчик получает только последний снимок.
func (r *DocumentRepository) Watch(ctx context.Context, name string) (<-chan *domain.QueueDocument, error) {
	ch := make(chan *domain.QueueDocument, 1)

	r.mu.Lock()
	if r.watchers[name] == nil {
		r.watchers[name] = make(map[chan *domain.QueueDocument]struct{})
	}
	r.watchers[name][ch] = struct{}{}
	ch <- r.snapshotLocked(name)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers[name], ch)
		close(ch)
		r.mu.Unlock()
	}()

	return ch, nil
}

func (r *DocumentRepository) snapshotLocked(name string) *domain.QueueDocument {
	if doc, ok := r.docs[name]; ok {
		return cloneDoc(doc)
	}
	return &domain.QueueDocument{Name: name}
}

func (r *DocumentRepository) publishLocked(name string) {
	for ch := range r.watchers[name] {
		snap := r.snapshotLocked(name)
		select {
		case ch <- snap:
		default:
			// вытесняем устаревший снимок
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func cloneDoc(d *domain.QueueDocument) *domain.QueueDocument {
	return &domain.QueueDocument{
		Name:            d.Name,
		Members:         append([]domain.QueueMember(nil), d.Members...),
		EmiratesMembers: append([]domain.QueueMember(nil), d.EmiratesMembers...),
		Notes:           append([]string(nil), d.Notes...),
	}
}
