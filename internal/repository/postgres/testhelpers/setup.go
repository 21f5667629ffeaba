package testhelpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// TestDB - подключение к тестовой базе
type TestDB struct {
	DB     *sqlx.DB
	DSN    string
	Logger *zap.Logger
}

// SetupTestDB подключается к тестовой базе и применяет схему.
// Без доступной базы тест пропускается.
func SetupTestDB(t *testing.T) *TestDB {
	host := getEnv("TEST_DB_HOST", "localhost")
	port := getEnv("TEST_DB_PORT", "5433")
	user := getEnv("TEST_DB_USER", "postgres")
	password := getEnv("TEST_DB_PASSWORD", "postgres")
	dbname := getEnv("TEST_DB_NAME", "droszt_test")
	sslmode := getEnv("TEST_DB_SSLMODE", "disable")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)

	var db *sqlx.DB
	var err error
	retryDelay := 200 * time.Millisecond
	for i := 0; i < 3; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}
		time.Sleep(retryDelay)
		retryDelay *= 2
	}
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}

	logger := zap.NewNop()
	if err := NewDBForTest(db, dsn, logger).Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &TestDB{DB: db, DSN: dsn, Logger: logger}
}

func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// Cleanup очищает таблицы между тестами
func (tdb *TestDB) Cleanup(ctx context.Context) error {
	for _, table := range []string{"driver_locations", "profiles"} {
		if _, err := tdb.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// SeedProfile вставляет профиль водителя
func (tdb *TestDB) SeedProfile(ctx context.Context, uid, username, plate, userType, role string) error {
	_, err := tdb.DB.ExecContext(ctx, `
		INSERT INTO profiles (uid, username, license_plate, user_type, role)
		VALUES ($1, $2, $3, $4, $5)`, uid, username, plate, userType, role)
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

