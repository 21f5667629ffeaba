// Package sqlite - durable хранилище устройства в локальном файле SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_kv (
	device TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (device, key)
)`

// Store - одна база на процесс, ключи разделены по установке (uid/device)
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open открывает файл базы и создаёт таблицу
func Open(path string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// один писатель
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create device_kv: %w", err)
	}

	logger.Info("SQLite local store opened", zap.String("path", path))

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ForDevice реализует repository.LocalStoreFactory
func (s *Store) ForDevice(uid, device string) repository.LocalStore {
	return &deviceStore{db: s.db, device: domain.DeviceKey(uid, device)}
}

type deviceStore struct {
	db     *sqlx.DB
	device string
}

func (u *deviceStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := u.db.GetContext(ctx, &value, `SELECT value FROM device_kv WHERE device = ? AND key = ?`, u.device, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (u *deviceStore) Set(ctx context.Context, key, value string) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO device_kv (device, key, value) VALUES (?, ?, ?)
		ON CONFLICT (device, key) DO UPDATE SET value = excluded.value`,
		u.device, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (u *deviceStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM device_kv WHERE device = ? AND key IN (?)`, u.device, keys)
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := u.db.ExecContext(ctx, u.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", strings.Join(keys, ","), err)
	}
	return nil
}
