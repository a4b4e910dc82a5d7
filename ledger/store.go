package ledger

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// Store persists committed ledger state. Every method is one atomic write.
type Store interface {
	// Load returns everything needed to rebuild the ledger
	Load(ctx context.Context) (Snapshot, error)
	// SaveStakes inserts new records, creating account ledgers as needed
	SaveStakes(ctx context.Context, records []StakeRecord) error
	// SaveClaim settles a claim across records, the account and the pool
	SaveClaim(ctx context.Context, c ClaimCommit) error
	// DeleteStake removes an unstaked record and its assets
	DeleteStake(ctx context.Context, id RecordID) error
	// SaveFunding appends to the funding history and stores the new pool balance
	SaveFunding(ctx context.Context, f FundingCommit) error
	// SaveFundingAuthority records a handover of the funding role
	SaveFundingAuthority(ctx context.Context, authority AccountID) error
	// StartDistributionSchedule stores the first distribution reference time
	// unless one is already persisted
	StartDistributionSchedule(ctx context.Context, at time.Time) error
}

// Snapshot is the persisted ledger state
type Snapshot struct {
	Accounts         []AccountLedger
	Pool             PoolState
	FundingAuthority AccountID
}

// RecordShare is the payout settled on one record by a claim
type RecordShare struct {
	RecordID RecordID
	Amount   *uint256.Int
}

// ClaimCommit carries the post-claim values to persist
type ClaimCommit struct {
	Account      AccountID
	Shares       []RecordShare
	AccountTotal *uint256.Int
	PoolBalance  *uint256.Int
	ClaimedAt    time.Time
}

// FundingRecord is one entry of the funding history
type FundingRecord struct {
	RequestID RequestID
	Funder    AccountID
	Amount    *uint256.Int
	FundedAt  time.Time
}

// FundingCommit carries a funding record and the credited pool balance
type FundingCommit struct {
	Record      FundingRecord
	PoolBalance *uint256.Int
}
