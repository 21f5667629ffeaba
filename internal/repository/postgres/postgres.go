package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/config"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// DB - пул профилей и живых координат. dsn сохраняется для LISTEN соединения lib/pq.
type DB struct {
	*sqlx.DB
	dsn    string
	logger *zap.Logger
}

func New(cfg *config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := connect(dsn, cfg.Host, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
	)
	return &DB{DB: db, dsn: dsn, logger: logger}, nil
}

func connect(dsn, host string, logger *zap.Logger) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
		cancel()
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("PostgreSQL not ready",
			zap.String("host", host),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff * time.Duration(attempt))
		}
	}
	return nil, fmt.Errorf("failed to connect to database: %w", lastErr)
}

func (db *DB) Close() error {
	db.logger.Info("Closing PostgreSQL connection")
	return db.DB.Close()
}

// Health для /healthz
func (db *DB) Health(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (db *DB) DSN() string {
	return db.dsn
}

// NewDBForTest оборачивает готовое подключение
func NewDBForTest(sqlxDB *sqlx.DB, dsn string, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: sqlxDB, dsn: dsn, logger: logger}
}
