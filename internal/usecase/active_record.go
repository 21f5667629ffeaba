package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

func loadActiveRecord(ctx context.Context, local repository.LocalStore) (*domain.ActiveCheckinRecord, error) {
	raw, err := local.Get(ctx, domain.KeyActiveCheckin)
	if err == domain.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active check-in: %w", err)
	}
	var rec domain.ActiveCheckinRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode active check-in: %w", err)
	}
	return &rec, nil
}

func saveActiveRecord(ctx context.Context, local repository.LocalStore, rec domain.ActiveCheckinRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode active check-in: %w", err)
	}
	if err := local.Set(ctx, domain.KeyActiveCheckin, string(b)); err != nil {
		return fmt.Errorf("failed to persist active check-in: %w", err)
	}
	// отметка выхода относилась к прежней зоне
	if err := local.Delete(ctx, domain.KeyFirstOutside); err != nil {
		return fmt.Errorf("failed to reset outside marker: %w", err)
	}
	return nil
}

// clearActiveRecord удаляет запись вместе с отметкой первого выхода из зоны
func clearActiveRecord(ctx context.Context, local repository.LocalStore) error {
	if err := local.Delete(ctx, domain.KeyActiveCheckin, domain.KeyFirstOutside); err != nil {
		return fmt.Errorf("failed to clear active check-in: %w", err)
	}
	return nil
}
