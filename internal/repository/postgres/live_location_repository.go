package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

type liveLocationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLiveLocationRepository создает репозиторий таблицы driver_locations
func NewLiveLocationRepository(db *DB, logger *zap.Logger) repository.LiveLocationRepository {
	return &liveLocationRepository{db: db, logger: logger}
}

func (r *liveLocationRepository) Upsert(ctx context.Context, loc domain.LiveLocation) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO driver_locations (uid, lat, lng, recorded_at)
		VALUES (:uid, :lat, :lng, :recorded_at)
		ON CONFLICT (uid) DO UPDATE
		SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, recorded_at = EXCLUDED.recorded_at`, loc)
	if err != nil {
		return fmt.Errorf("failed to upsert live location: %w", err)
	}
	return nil
}

func (r *liveLocationRepository) Get(ctx context.Context, uid string) (*domain.LiveLocation, error) {
	var loc domain.LiveLocation
	err := r.db.GetContext(ctx, &loc,
		`SELECT uid, lat, lng, recorded_at FROM driver_locations WHERE uid = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live location: %w", err)
	}
	return &loc, nil
}

func (r *liveLocationRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM driver_locations WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("failed to delete live location: %w", err)
	}
	r.logger.Debug("live location removed", zap.String("uid", uid))
	return nil
}
