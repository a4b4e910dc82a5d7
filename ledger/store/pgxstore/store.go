package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/ledger/store/dbrow"
	"github.com/screwyprof/hivestake/pkg/pgxdb"
)

// Sentinel errors for store operations
var (
	ErrLoadFailed      = errors.New("loading ledger state failed")
	ErrInsertFailed    = errors.New("insert operation failed")
	ErrCopyFailed      = errors.New("bulk copy operation failed")
	ErrUpdateFailed    = errors.New("update operation failed")
	ErrDeleteFailed    = errors.New("delete operation failed")
	ErrRecordMissing   = errors.New("stake record does not exist")
	ErrPoolRowMissing  = errors.New("reward pool row does not exist")
	ErrInvalidSnapshot = errors.New("stored ledger state is invalid")
)

// SQL queries
const (
	selectAccountsSQL = `
		SELECT account_id, total_claimed::text AS total_claimed
		FROM accounts
		ORDER BY account_id`

	selectRecordsSQL = `
		SELECT record_id, account_id, weight, staked_at, lockup_seconds, claimed,
		       claimed_rewards::text AS claimed_rewards
		FROM stake_records
		ORDER BY record_id`

	selectAssetsSQL = `
		SELECT asset_id, record_id, class
		FROM stake_assets
		ORDER BY record_id, position`

	selectPoolSQL = `
		SELECT balance::text AS balance, last_distribution, funding_authority
		FROM reward_pool
		WHERE single_row`

	insertAccountSQL = `
		INSERT INTO accounts (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING`

	insertRecordSQL = `
		INSERT INTO stake_records (record_id, account_id, weight, staked_at, lockup_seconds, claimed, claimed_rewards)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)`

	settleRecordSQL = `
		UPDATE stake_records SET claimed = TRUE, claimed_rewards = $2::numeric
		WHERE record_id = $1 AND NOT claimed`

	updateAccountTotalSQL = `
		UPDATE accounts SET total_claimed = $2::numeric
		WHERE account_id = $1`

	updatePoolAfterClaimSQL = `
		UPDATE reward_pool SET balance = $1::numeric, last_distribution = $2, updated_at = CURRENT_TIMESTAMP
		WHERE single_row`

	updatePoolBalanceSQL = `
		UPDATE reward_pool SET balance = $1::numeric, updated_at = CURRENT_TIMESTAMP
		WHERE single_row`

	updateAuthoritySQL = `
		UPDATE reward_pool SET funding_authority = $1, updated_at = CURRENT_TIMESTAMP
		WHERE single_row`

	startScheduleSQL = `
		UPDATE reward_pool SET last_distribution = $1, updated_at = CURRENT_TIMESTAMP
		WHERE single_row AND last_distribution IS NULL`

	deleteRecordSQL = `DELETE FROM stake_records WHERE record_id = $1`

	insertFundingSQL = `
		INSERT INTO funding_records (request_id, funder, amount, funded_at)
		VALUES ($1, $2, $3::numeric, $4)`
)

// Store implements ledger.Store using pgx
type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// Load reads the whole ledger in one repeatable-read snapshot
func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", pgxdb.ErrBeginTx, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	accounts, err := collect[dbrow.Account](ctx, tx, selectAccountsSQL)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	records, err := collect[dbrow.StakeRecord](ctx, tx, selectRecordsSQL)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	assets, err := collect[dbrow.StakeAsset](ctx, tx, selectAssetsSQL)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	rows, err := tx.Query(ctx, selectPoolSQL)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	pool, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.RewardPool])
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Snapshot{}, ErrPoolRowMissing
	}
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	snap, err := dbrow.ToSnapshot(accounts, records, assets, pool)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return snap, nil
}

// SaveStakes inserts records, their account rows and their assets in one transaction.
// A duplicate asset violates the stake_assets primary key and fails the whole write.
func (s *Store) SaveStakes(ctx context.Context, records []ledger.StakeRecord) error {
	if len(records) == 0 {
		return nil
	}

	return pgxdb.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(insertAccountSQL, string(r.Owner))
		}
		for _, r := range records {
			batch.Queue(insertRecordSQL,
				int64(r.ID),
				string(r.Owner),
				int64(r.Weight),
				r.StakedAt,
				int64(r.LockupPeriod.Seconds()),
				r.Claimed,
				dbrow.Amount(r.ClaimedRewards),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}

		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"stake_assets"},
			[]string{"asset_id", "record_id", "class", "position"},
			pgx.CopyFromRows(dbrow.StakeAssetsToRows(records)),
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCopyFailed, err)
		}
		return nil
	})
}

// SaveClaim settles the shared records, the account total and the pool in one transaction
func (s *Store) SaveClaim(ctx context.Context, c ledger.ClaimCommit) error {
	return pgxdb.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, sh := range c.Shares {
			tag, err := tx.Exec(ctx, settleRecordSQL, int64(sh.RecordID), dbrow.Amount(sh.Amount))
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("%w: unclaimed record %d", ErrRecordMissing, sh.RecordID)
			}
		}

		if _, err := tx.Exec(ctx, updateAccountTotalSQL, string(c.Account), dbrow.Amount(c.AccountTotal)); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		}

		return updatePool(ctx, tx, updatePoolAfterClaimSQL, dbrow.Amount(c.PoolBalance), c.ClaimedAt)
	})
}

// DeleteStake removes a record; its assets go with it
func (s *Store) DeleteStake(ctx context.Context, id ledger.RecordID) error {
	tag, err := s.pool.Exec(ctx, deleteRecordSQL, int64(id))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: %d", ErrRecordMissing, id)
	}
	return nil
}

// SaveFunding appends the funding record and stores the credited balance in one transaction
func (s *Store) SaveFunding(ctx context.Context, f ledger.FundingCommit) error {
	return pgxdb.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertFundingSQL,
			f.Record.RequestID.String(),
			string(f.Record.Funder),
			dbrow.Amount(f.Record.Amount),
			f.Record.FundedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}

		return updatePool(ctx, tx, updatePoolBalanceSQL, dbrow.Amount(f.PoolBalance))
	})
}

// SaveFundingAuthority stores the account holding the funding role
func (s *Store) SaveFundingAuthority(ctx context.Context, authority ledger.AccountID) error {
	return updatePool(ctx, s.pool, updateAuthoritySQL, string(authority))
}

// StartDistributionSchedule sets last_distribution once; later calls leave it alone
func (s *Store) StartDistributionSchedule(ctx context.Context, at time.Time) error {
	if _, err := s.pool.Exec(ctx, startScheduleSQL, at); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return nil
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// updatePool runs an update against the single reward_pool row
func updatePool(ctx context.Context, db execer, query string, args ...any) error {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrPoolRowMissing
	}
	return nil
}

func collect[T any](ctx context.Context, tx pgx.Tx, query string) ([]T, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return out, nil
}
