package dbrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/ledger"
)

// ErrMalformedRow is returned when a stored value cannot be mapped back to the domain
var ErrMalformedRow = errors.New("malformed row")

// Account is an account ledger row; amounts are read as decimal text
type Account struct {
	AccountID    string `db:"account_id"`
	TotalClaimed string `db:"total_claimed"`
}

// StakeRecord is a stake_records row
type StakeRecord struct {
	RecordID       int64     `db:"record_id"`
	AccountID      string    `db:"account_id"`
	Weight         int64     `db:"weight"`
	StakedAt       time.Time `db:"staked_at"`
	LockupSeconds  int64     `db:"lockup_seconds"`
	Claimed        bool      `db:"claimed"`
	ClaimedRewards string    `db:"claimed_rewards"`
}

// StakeAsset is a stake_assets row
type StakeAsset struct {
	AssetID  string `db:"asset_id"`
	RecordID int64  `db:"record_id"`
	Class    int16  `db:"class"`
}

// RewardPool is the single reward_pool row
type RewardPool struct {
	Balance          string     `db:"balance"`
	LastDistribution *time.Time `db:"last_distribution"`
	FundingAuthority string     `db:"funding_authority"`
}

// StakeAssetsToRows flattens the assets of records into rows for pgx.CopyFromRows
func StakeAssetsToRows(records []ledger.StakeRecord) [][]any {
	var rows [][]any
	for _, r := range records {
		for i, a := range r.Assets {
			rows = append(rows, []any{string(a.ID), int64(r.ID), int16(a.Class), i})
		}
	}
	return rows
}

// Amount renders an amount for a NUMERIC parameter
func Amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// ParseAmount reads a NUMERIC rendered as text
func ParseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %w", ErrMalformedRow, s, err)
	}
	return v, nil
}

// ToSnapshot assembles the persisted rows into a ledger snapshot.
// Records and assets must be ordered by record id and position.
func ToSnapshot(accounts []Account, records []StakeRecord, assets []StakeAsset, pool RewardPool) (ledger.Snapshot, error) {
	byRecord := make(map[int64][]ledger.StakedAsset, len(records))
	for _, a := range assets {
		byRecord[a.RecordID] = append(byRecord[a.RecordID], ledger.StakedAsset{
			ID:    ledger.AssetID(a.AssetID),
			Class: ledger.Class(a.Class),
		})
	}

	byAccount := make(map[string][]ledger.StakeRecord, len(accounts))
	for _, r := range records {
		rewards, err := ParseAmount(r.ClaimedRewards)
		if err != nil {
			return ledger.Snapshot{}, err
		}
		if len(byRecord[r.RecordID]) == 0 {
			return ledger.Snapshot{}, fmt.Errorf("%w: record %d has no assets", ErrMalformedRow, r.RecordID)
		}
		byAccount[r.AccountID] = append(byAccount[r.AccountID], ledger.StakeRecord{
			ID:             ledger.RecordID(r.RecordID),
			Owner:          ledger.AccountID(r.AccountID),
			Assets:         byRecord[r.RecordID],
			Weight:         uint64(r.Weight),
			StakedAt:       r.StakedAt.UTC(),
			LockupPeriod:   time.Duration(r.LockupSeconds) * time.Second,
			Claimed:        r.Claimed,
			ClaimedRewards: rewards,
		})
	}

	snap := ledger.Snapshot{
		Accounts:         make([]ledger.AccountLedger, 0, len(accounts)),
		FundingAuthority: ledger.AccountID(pool.FundingAuthority),
	}
	for _, a := range accounts {
		total, err := ParseAmount(a.TotalClaimed)
		if err != nil {
			return ledger.Snapshot{}, err
		}
		snap.Accounts = append(snap.Accounts, ledger.AccountLedger{
			ID:           ledger.AccountID(a.AccountID),
			Records:      byAccount[a.AccountID],
			TotalClaimed: total,
		})
	}

	balance, err := ParseAmount(pool.Balance)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap.Pool = ledger.PoolState{Balance: balance, Reserved: new(uint256.Int)}
	if pool.LastDistribution != nil {
		snap.Pool.LastDistribution = pool.LastDistribution.UTC()
	}

	return snap, nil
}

// FundingRecord is a funding_records row
type FundingRecord struct {
	ID        int64     `db:"id"`
	RequestID string    `db:"request_id"`
	Funder    string    `db:"funder"`
	Amount    string    `db:"amount"`
	FundedAt  time.Time `db:"funded_at"`
}

// ToFundingRecord maps a funding row to the domain
func (f FundingRecord) ToFundingRecord() (ledger.FundingRecord, error) {
	amount, err := ParseAmount(f.Amount)
	if err != nil {
		return ledger.FundingRecord{}, err
	}
	id, err := uuid.Parse(f.RequestID)
	if err != nil {
		return ledger.FundingRecord{}, fmt.Errorf("%w: request id %q: %w", ErrMalformedRow, f.RequestID, err)
	}
	return ledger.FundingRecord{
		RequestID: id,
		Funder:    ledger.AccountID(f.Funder),
		Amount:    amount,
		FundedAt:  f.FundedAt.UTC(),
	}, nil
}
