// Package handler exposes the staking ledger over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/ledger"
)

// Workflow issues two-phase requests and reports their state
type Workflow interface {
	Stake(ctx context.Context, caller ledger.AccountID, asset ledger.AssetID) (ledger.RequestID, error)
	Claim(ctx context.Context, caller ledger.AccountID) (ledger.ClaimReceipt, error)
	Unstake(ctx context.Context, caller ledger.AccountID, sel ledger.Selector) (ledger.RequestID, error)
	Fund(ctx context.Context, caller ledger.AccountID, amount *uint256.Int) (ledger.RequestID, error)
	Request(id ledger.RequestID) (ledger.Request, error)
}

// Ingestor stakes assets from transfers already observed in custody, on behalf of the ingest authority
type Ingestor interface {
	Submit(ctx context.Context, caller ledger.AccountID, events []ledger.TransferEvent) (bool, error)
}

// StakeReader answers per-account queries
type StakeReader interface {
	UserStakes(id ledger.AccountID) []ledger.StakeView
	AccountSummary(id ledger.AccountID) (ledger.AccountSummary, error)
}

// PoolReader answers reward pool queries and hands over the funding role
type PoolReader interface {
	Pool() ledger.PoolState
	NextDistributionTime() time.Time
	DaysUntilNextDistribution(now time.Time) uint64
	FundingAuthority() ledger.AccountID
	PreviewDistribution(now time.Time) []ledger.Distribution
	SetFundingAuthority(ctx context.Context, caller, next ledger.AccountID) error
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// Router registers its routes on a mux
type Router interface {
	AddRoutes(m *http.ServeMux)
}

// NewServeMux registers every router on a new mux
func NewServeMux(routers ...Router) *http.ServeMux {
	mux := http.NewServeMux()
	for _, r := range routers {
		r.AddRoutes(mux)
	}
	return mux
}
