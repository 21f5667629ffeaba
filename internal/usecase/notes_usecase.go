package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/errors"
)

// NotesUseCase - заказы аэропорта, список строк в документе Reptér
type NotesUseCase struct {
	docs   repository.DocumentRepository
	logger *zap.Logger
}

func NewNotesUseCase(docs repository.DocumentRepository, logger *zap.Logger) *NotesUseCase {
	return &NotesUseCase{docs: docs, logger: logger}
}

func (uc *NotesUseCase) List(ctx context.Context) ([]string, error) {
	doc, err := uc.docs.Get(ctx, domain.QueueRepter)
	if stderrors.Is(err, domain.ErrDocumentNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	if doc.Notes == nil {
		return []string{}, nil
	}
	return doc.Notes, nil
}

// Add добавляет заказ в начало списка
func (uc *NotesUseCase) Add(ctx context.Context, sess *Session, text string) ([]string, error) {
	return uc.mutate(ctx, sess, func(notes []string) ([]string, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, errors.ErrInvalidRequest
		}
		return append([]string{text}, notes...), nil
	})
}

func (uc *NotesUseCase) Update(ctx context.Context, sess *Session, index int, text string) ([]string, error) {
	return uc.mutate(ctx, sess, func(notes []string) ([]string, error) {
		if index < 0 || index >= len(notes) {
			return nil, errors.ErrInvalidNoteIndex
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, errors.ErrInvalidRequest
		}
		notes[index] = text
		return notes, nil
	})
}

func (uc *NotesUseCase) Delete(ctx context.Context, sess *Session, index int) ([]string, error) {
	return uc.mutate(ctx, sess, func(notes []string) ([]string, error) {
		if index < 0 || index >= len(notes) {
			return nil, errors.ErrInvalidNoteIndex
		}
		return append(notes[:index], notes[index+1:]...), nil
	})
}

// Move переносит заказ с позиции from на позицию to
func (uc *NotesUseCase) Move(ctx context.Context, sess *Session, from, to int) ([]string, error) {
	return uc.mutate(ctx, sess, func(notes []string) ([]string, error) {
		if from < 0 || from >= len(notes) || to < 0 || to >= len(notes) {
			return nil, errors.ErrInvalidNoteIndex
		}
		item := notes[from]
		notes = append(notes[:from], notes[from+1:]...)
		notes = append(notes[:to], append([]string{item}, notes[to:]...)...)
		return notes, nil
	})
}

func (uc *NotesUseCase) mutate(ctx context.Context, sess *Session, fn func([]string) ([]string, error)) ([]string, error) {
	if !sess.Actor.Admin {
		return nil, errors.ErrForbidden
	}
	current, err := uc.List(ctx)
	if err != nil {
		return nil, errors.ErrStoreError
	}
	next, err := fn(append([]string(nil), current...))
	if err != nil {
		return nil, err
	}
	if err := uc.docs.SetNotes(ctx, domain.QueueRepter, next); err != nil {
		uc.logger.Error("failed to save notes", zap.Error(err))
		return nil, errors.ErrStoreError
	}
	uc.logger.Info("airport orders updated", zap.Int("count", len(next)), zap.String("admin", sess.Actor.UID))
	return next, nil
}
