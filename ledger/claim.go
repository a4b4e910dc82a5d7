package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/pkg/logger"
)

// ClaimReceipt is returned when a claim's payout transfer has been issued
type ClaimReceipt struct {
	RequestID RequestID
	Amount    *uint256.Int
}

type claimPlan struct {
	id      RequestID
	account AccountID
	shares  []RecordShare
	total   *uint256.Int
}

// reserveClaim snapshots the available balance and total weight, computes the
// caller's payout and holds it until the transfer completes.
func (l *Ledger) reserveClaim(id RequestID, caller AccountID, now time.Time) (claimPlan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[caller]
	if !ok {
		return claimPlan{}, fmt.Errorf("%w: %s", ErrStakerNotFound, caller)
	}

	records, shares, total := l.claimable(acc, now)
	if total.IsZero() {
		return claimPlan{}, fmt.Errorf("%w: %s", ErrNoRewardsAvailable, caller)
	}

	for _, r := range records {
		r.pending = id
	}
	l.pool.Reserved.Add(l.pool.Reserved, total)

	return claimPlan{id: id, account: caller, shares: shares, total: total}, nil
}

// commitClaim settles a paid-out claim. The reservation guarantees the
// records and funds are still there; it is re-checked before persisting.
func (l *Ledger) commitClaim(ctx context.Context, p claimPlan, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[p.account]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStakerNotFound, p.account)
	}

	records := make([]*StakeRecord, len(p.shares))
	for i, s := range p.shares {
		r := acc.find(Selector{RecordID: s.RecordID})
		if r == nil || r.pending != p.id {
			return fmt.Errorf("%w: record %d no longer reserved by claim %s", ErrValidation, s.RecordID, p.id)
		}
		records[i] = r
	}
	if l.pool.Reserved.Lt(p.total) || l.pool.Balance.Lt(p.total) {
		return fmt.Errorf("%w: reservation of %s missing from pool", ErrValidation, p.total.Dec())
	}

	balance := new(uint256.Int).Sub(l.pool.Balance, p.total)
	lifetime := new(uint256.Int).Add(acc.totalClaimed, p.total)

	err := l.store.SaveClaim(ctx, ClaimCommit{
		Account:      p.account,
		Shares:       p.shares,
		AccountTotal: lifetime,
		PoolBalance:  balance,
		ClaimedAt:    now,
	})
	if err != nil {
		// Payout already left the pool account; keep the reservation until reconciled.
		l.logger.ErrorContext(ctx, "Claim paid but not persisted",
			slog.String("request", p.id.String()),
			slog.String("account", string(p.account)),
			logger.Amount("amount", p.total),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	for i, r := range records {
		r.Claimed = true
		r.ClaimedRewards = new(uint256.Int).Set(p.shares[i].Amount)
		r.pending = RequestID{}
	}
	acc.totalClaimed = lifetime
	l.pool.Balance = balance
	l.pool.Reserved.Sub(l.pool.Reserved, p.total)
	l.pool.LastDistribution = now

	l.logger.InfoContext(ctx, "Claim settled",
		slog.String("account", string(p.account)),
		logger.Amount("amount", p.total),
		slog.Int("records", len(records)),
	)

	return nil
}

// releaseClaim drops the reservation after a failed payout
func (l *Ledger) releaseClaim(p claimPlan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[p.account]; ok {
		for _, r := range acc.records {
			if r.pending == p.id {
				r.pending = RequestID{}
			}
		}
	}

	if l.pool.Reserved.Lt(p.total) {
		l.pool.Reserved.Clear()
		return
	}
	l.pool.Reserved.Sub(l.pool.Reserved, p.total)
}
