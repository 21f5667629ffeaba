package testhelpers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/repository/postgres"
)

func NewDBForTest(db *sqlx.DB, dsn string, logger *zap.Logger) *postgres.DB {
	return postgres.NewDBForTest(db, dsn, logger)
}

func NewProfileRepositoryForTest(tdb *TestDB) repository.ProfileRepository {
	return postgres.NewProfileRepository(NewDBForTest(tdb.DB, tdb.DSN, tdb.Logger), tdb.Logger)
}

func NewLiveLocationRepositoryForTest(tdb *TestDB) repository.LiveLocationRepository {
	return postgres.NewLiveLocationRepository(NewDBForTest(tdb.DB, tdb.DSN, tdb.Logger), tdb.Logger)
}
