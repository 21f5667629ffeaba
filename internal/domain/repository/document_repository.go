package repository

import (
	"context"

	"github.com/droszt-service/internal/domain"
)

// DocumentRepository - общее хранилище документов очередей (locations/{name})
type DocumentRepository interface {
	// Get возвращает документ; domain.ErrDocumentNotFound если его нет
	Get(ctx context.Context, name string) (*domain.QueueDocument, error)

	// Create создаёт документ с начальным массивом в поле;
	// domain.ErrDocumentExists если документ уже создан
	Create(ctx context.Context, name string, field domain.QueueField, members []domain.QueueMember) error

	// ArrayUnion атомарно добавляет запись в конец, если точно такой записи ещё нет.
	// domain.ErrDocumentNotFound если документа нет.
	ArrayUnion(ctx context.Context, name string, field domain.QueueField, member domain.QueueMember) error

	// ArrayRemove атомарно удаляет запись по точному совпадению значения.
	// Возвращает false, если такой записи не было.
	ArrayRemove(ctx context.Context, name string, field domain.QueueField, member domain.QueueMember) (bool, error)

	// Replace заменяет массив поля целиком (last-writer-wins); создаёт документ при отсутствии
	Replace(ctx context.Context, name string, field domain.QueueField, members []domain.QueueMember) error

	// SetNotes заменяет список заказов аэропорта
	SetNotes(ctx context.Context, name string, notes []string) error

	// Watch отдаёт снимки документа при каждом изменении; канал закрывается по ctx
	Watch(ctx context.Context, name string) (<-chan *domain.QueueDocument, error)
}
