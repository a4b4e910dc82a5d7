// Package migratortest provisions migrated databases in the states the services start from.
package migratortest

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/migrator"
	"github.com/screwyprof/hivestake/pkg/pgxdb/pgxdbtest"
)

// CreateIngesterTestDatabase returns an empty ledger whose transfer feed resumes after initialCheckpoint
func CreateIngesterTestDatabase(t *testing.T, migrationsDir string, initialCheckpoint uint64) *pgxpool.Pool {
	t.Helper()

	pool := connect(t, migrator.NewSchemaMigrator(migrationsDir))
	require.NoError(t, migrator.InitializeCheckpoint(t.Context(), pool, initialCheckpoint))

	return pool
}

// CreateSeededTestDatabase returns a ledger with accounts demo stakers and fundings pool top-ups.
// Databases with the same shape are cloned from one template.
func CreateSeededTestDatabase(t *testing.T, migrationsDir string, accounts, fundings int, seedTimeout time.Duration) *pgxpool.Pool {
	t.Helper()

	return connect(t, migrator.NewSeededMigrator(migrationsDir, accounts, fundings, seedTimeout))
}

func connect(t *testing.T, m pgtestdb.Migrator) *pgxpool.Pool {
	t.Helper()

	dbURL := pgtestdb.Custom(t, pgxdbtest.Config(), m).URL()
	t.Logf("testdbconf: %s", dbURL)

	pool, err := pgxpool.New(t.Context(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}
