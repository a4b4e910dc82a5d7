// Package pgxdbtest creates throwaway Postgres databases for acceptance tests.
package pgxdbtest

import (
	"context"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/require"
)

// Server describes the Postgres instance template databases are cloned on.
// Defaults match the docker compose service.
type Server struct {
	User     string `env:"PGTEST_USER" envDefault:"hivestake"`
	Password string `env:"PGTEST_PASSWORD" envDefault:"hivestake"`
	Host     string `env:"PGTEST_HOST" envDefault:"localhost"`
	Port     string `env:"PGTEST_PORT" envDefault:"5432"`
	Options  string `env:"PGTEST_OPTIONS" envDefault:"sslmode=disable"`
}

// Config returns the pgtestdb connection settings shared by all database tests
func Config() pgtestdb.Config {
	srv := env.Must(env.ParseAs[Server]())
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       srv.User,
		Password:   srv.Password,
		Host:       srv.Host,
		Port:       srv.Port,
		Options:    srv.Options,
	}
}

// CreateTestDatabase creates an empty ledger schema.
// Returns the connection pool and database URL for further connections.
func CreateTestDatabase(t *testing.T, migrationsDir string) (*pgxpool.Pool, string) {
	t.Helper()

	m := sqlmigrator.New(
		&migrate.FileMigrationSource{Dir: migrationsDir},
		&migrate.MigrationSet{TableName: "schema_migrations"},
	)

	dbURL := pgtestdb.Custom(t, Config(), m).URL()
	t.Logf("testdbconf: %s", dbURL)

	pool, err := createTestConnection(t.Context(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool, dbURL
}

// createTestConnection creates a small pool; store tests issue one transaction at a time
func createTestConnection(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, err
	}

	config.MinConns = 1
	config.MaxConns = 2
	config.MaxConnIdleTime = time.Minute
	config.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, config)
}
