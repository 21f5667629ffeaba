package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ProfileChannel - канал NOTIFY, payload содержит uid изменённого профиля
const ProfileChannel = "profile_changed"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		uid           TEXT PRIMARY KEY,
		username      TEXT NOT NULL,
		license_plate TEXT NOT NULL DEFAULT '',
		user_type     TEXT NOT NULL DEFAULT 'Taxi',
		role          TEXT NOT NULL DEFAULT 'user',
		status        TEXT NOT NULL DEFAULT 'active',
		can_see_213   BOOLEAN NOT NULL DEFAULT FALSE,
		session_token BIGINT NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS driver_locations (
		uid         TEXT PRIMARY KEY,
		lat         DOUBLE PRECISION NOT NULL,
		lng         DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE OR REPLACE FUNCTION notify_profile_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('profile_changed', NEW.uid);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS profiles_notify ON profiles`,
	`CREATE TRIGGER profiles_notify AFTER INSERT OR UPDATE ON profiles
		FOR EACH ROW EXECUTE FUNCTION notify_profile_changed()`,
}

// Migrate создаёт таблицы профилей и живых координат
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("PostgreSQL schema ready", zap.Int("statements", len(migrations)))
	return nil
}
