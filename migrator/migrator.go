package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/ledger/store/pgxstore"
	"github.com/screwyprof/hivestake/pkg/clock"
	"github.com/screwyprof/hivestake/pkg/pgxdb"
	"github.com/screwyprof/hivestake/pkg/registry"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
	seededHashPrefix    = "seeded_demo_"
)

// SQL queries
const (
	initCheckpointSQL = `
		INSERT INTO feed_checkpoint (single_row, last_id)
		VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO NOTHING`

	setCheckpointSQL = `
		INSERT INTO feed_checkpoint (single_row, last_id)
		VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO UPDATE SET last_id = EXCLUDED.last_id, updated_at = CURRENT_TIMESTAMP`

	initAuthoritySQL = `
		UPDATE reward_pool SET funding_authority = $1
		WHERE single_row AND funding_authority = ''`
)

// Demo data shape
const (
	DemoCustody   ledger.AccountID = "custody.demo"
	DemoAuthority ledger.AccountID = "owner.demo"
)

// DemoEpoch is when the first demo stake was made
var DemoEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Migration-related errors
var (
	ErrMigrationExecution  = errors.New("migration execution failed")
	ErrCheckpointOperation = errors.New("checkpoint operation failed")
	ErrAuthorityOperation  = errors.New("funding authority operation failed")
	ErrSeedFailed          = errors.New("seeding demo data failed")
)

// SchemaMigrator applies only database schema migrations
// Used for production and tests that need schema-only setup
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}
	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	return applyMigrations(db, m.migrationsDir)
}

// SeededMigrator applies schema migrations + seeds a demo ledger
// Used for web API tests that need realistic data to test against
type SeededMigrator struct {
	migrationsDir string
	accounts      int
	fundings      int
	seedTimeout   time.Duration
}

// NewSeededMigrator creates a migrator that applies schema + seeds demo data:
// accounts stakers with one record each and fundings entries of funding history
func NewSeededMigrator(migrationsDir string, accounts, fundings int, seedTimeout time.Duration) *SeededMigrator {
	return &SeededMigrator{
		migrationsDir: migrationsDir,
		accounts:      accounts,
		fundings:      fundings,
		seedTimeout:   seedTimeout,
	}
}

func (m *SeededMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}
	return seededHashPrefix + baseHash + "_" + strconv.Itoa(m.accounts) + "_" + strconv.Itoa(m.fundings), nil
}

func (m *SeededMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	// Apply schema migrations using common function
	if err := applyMigrations(db, m.migrationsDir); err != nil {
		return err
	}

	seedCtx, cancel := context.WithTimeout(ctx, m.seedTimeout)
	defer cancel()

	pool, err := pgxdb.NewConnection(seedCtx, conf.URL())
	if err != nil {
		return err
	}
	defer pool.Close()

	return SeedDemoData(seedCtx, pool, m.accounts, m.fundings)
}

// SeedDemoData stakes demo assets through the batch ingestion path and funds the pool.
// The pool must point at an empty, migrated database.
func SeedDemoData(ctx context.Context, pool *pgxpool.Pool, accounts, fundings int) error {
	slog.InfoContext(ctx, "🌱 Seeding demo ledger",
		"accounts", accounts,
		"fundings", fundings)

	store, storeCloser := pgxstore.New(pool)
	defer storeCloser()

	if err := InitializeFundingAuthority(ctx, pool, DemoAuthority); err != nil {
		return err
	}

	l := ledger.New(ledger.Accounts{Custody: DemoCustody, FundingAuthority: DemoAuthority}, store,
		ledger.WithClock(clock.NewManual(DemoEpoch)),
	)
	if err := l.Restore(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}

	if accounts > 0 {
		if _, err := ledger.NewBatchIngestor(l, demoRegistry{}).ProcessBatchTransfer(ctx, DemoTransfers(accounts)); err != nil {
			return fmt.Errorf("%w: %w", ErrSeedFailed, err)
		}
	}

	balance := new(uint256.Int)
	for i := range fundings {
		amount := uint256.NewInt(uint64(1000 * (i + 1)))
		balance.Add(balance, amount)
		err := store.SaveFunding(ctx, ledger.FundingCommit{
			Record: ledger.FundingRecord{
				RequestID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("demo-funding-"+strconv.Itoa(i))),
				Funder:    DemoAuthority,
				Amount:    amount,
				FundedAt:  DemoEpoch.Add(time.Duration(i) * time.Hour),
			},
			PoolBalance: new(uint256.Int).Set(balance),
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSeedFailed, err)
		}
	}

	slog.InfoContext(ctx, "✅ Demo ledger seeded",
		"totalWeight", l.TotalStakedPoints(),
		"balance", balance.Dec())
	return nil
}

// DemoTransfers builds one custody transfer per demo account. Account i stakes
// assets demo-i-0..demo-i-(i%3); the first asset of every third account is a queen.
func DemoTransfers(accounts int) []ledger.TransferEvent {
	events := make([]ledger.TransferEvent, accounts)
	for i := range events {
		assets := make([]ledger.AssetID, i%3+1)
		for j := range assets {
			assets[j] = ledger.AssetID(fmt.Sprintf("demo-%d-%d", i, j))
		}
		events[i] = ledger.TransferEvent{
			PreviousOwner: DemoAccount(i),
			Destination:   DemoCustody,
			AssetIDs:      assets,
		}
	}
	return events
}

// DemoAccount names the i-th demo staker
func DemoAccount(i int) ledger.AccountID {
	return ledger.AccountID(fmt.Sprintf("staker-%03d.demo", i))
}

// demoRegistry reports demo assets as deposited into custody by their staker,
// classified from their id
type demoRegistry struct{}

func (demoRegistry) Token(_ context.Context, tokenID string) (registry.Token, error) {
	var i, j int
	if _, err := fmt.Sscanf(tokenID, "demo-%d-%d", &i, &j); err != nil {
		return registry.Token{}, fmt.Errorf("%w: %s", registry.ErrTokenNotFound, tokenID)
	}

	attrs := []registry.Attribute{{TraitType: "Body", Value: "Striped"}}
	switch {
	case j == 0 && i%3 == 0:
		attrs = []registry.Attribute{{TraitType: "Body", Value: "Queen"}}
	case j == 1:
		attrs = append(attrs, registry.Attribute{TraitType: "Wings", Value: "Diamond"})
	}
	return registry.Token{
		TokenID:     tokenID,
		OwnerID:     string(DemoCustody),
		DepositorID: string(DemoAccount(i)),
		Metadata:    registry.Metadata{ReferenceBlob: registry.ReferenceBlob{Attributes: attrs}},
	}, nil
}

// ApplyMigrations applies database migrations using sql-migrate with the provided pgx pool
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) error {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// InitializeCheckpoint initializes the transfer feed checkpoint if not already set
func InitializeCheckpoint(ctx context.Context, pool *pgxpool.Pool, initialCheckpoint uint64) error {
	_, err := pool.Exec(ctx, initCheckpointSQL, int64(initialCheckpoint))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointOperation, err)
	}
	return nil
}

// SetCheckpoint sets the transfer feed checkpoint, overwriting any existing value
func SetCheckpoint(ctx context.Context, pool *pgxpool.Pool, checkpoint uint64) error {
	_, err := pool.Exec(ctx, setCheckpointSQL, int64(checkpoint))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointOperation, err)
	}
	return nil
}

// InitializeFundingAuthority stores the funding authority unless one was handed over already
func InitializeFundingAuthority(ctx context.Context, pool *pgxpool.Pool, authority ledger.AccountID) error {
	_, err := pool.Exec(ctx, initAuthoritySQL, string(authority))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthorityOperation, err)
	}
	return nil
}

func migrationsHash(dir string) (string, error) {
	source := &migrate.FileMigrationSource{Dir: dir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	hash, err := sqlmigrator.New(source, migrationSet).Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", dir, err)
	}
	return hash, nil
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) error {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	_, err := migrationSet.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return nil
}
