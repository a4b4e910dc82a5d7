package ledger

import (
	"sort"
	"time"

	"github.com/holiman/uint256"
)

const day = 24 * time.Hour

// PoolState is the reward pool accounting
type PoolState struct {
	Balance *uint256.Int
	// Reserved is held by outstanding claims and already promised to their callers
	Reserved         *uint256.Int
	TotalWeight      uint64
	LastDistribution time.Time
}

// Available is the balance not reserved by outstanding claims
func (p PoolState) Available() *uint256.Int {
	if p.Reserved.Gt(p.Balance) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(p.Balance, p.Reserved)
}

func (p PoolState) clone() PoolState {
	return PoolState{
		Balance:          new(uint256.Int).Set(p.Balance),
		Reserved:         new(uint256.Int).Set(p.Reserved),
		TotalWeight:      p.TotalWeight,
		LastDistribution: p.LastDistribution,
	}
}

// Pool returns a copy of the pool state
func (l *Ledger) Pool() PoolState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.clone()
}

// RewardPoolBalance returns the pool balance, reserved funds included
func (l *Ledger) RewardPoolBalance() *uint256.Int {
	return l.Pool().Balance
}

// TotalStakedPoints returns the weight of all active records
func (l *Ledger) TotalStakedPoints() uint64 {
	return l.Pool().TotalWeight
}

// LastDistributionTime returns when the last claim settled
func (l *Ledger) LastDistributionTime() time.Time {
	return l.Pool().LastDistribution
}

// NextDistributionTime is the last distribution plus the distribution interval
func (l *Ledger) NextDistributionTime() time.Time {
	return l.LastDistributionTime().Add(l.interval)
}

// DaysUntilNextDistribution counts whole days left until the next distribution, 0 once due
func (l *Ledger) DaysUntilNextDistribution(now time.Time) uint64 {
	next := l.NextDistributionTime()
	if !next.After(now) {
		return 0
	}
	return uint64(next.Sub(now) / day)
}

// FundingAuthority returns the account currently allowed to fund the pool
func (l *Ledger) FundingAuthority() AccountID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authority
}

// share computes floor(available * weight / total) without overflow
func share(available *uint256.Int, weight, total uint64) *uint256.Int {
	if total == 0 || weight == 0 {
		return new(uint256.Int)
	}
	out, _ := new(uint256.Int).MulDivOverflow(available, uint256.NewInt(weight), uint256.NewInt(total))
	return out
}

// claimable collects the shares of an account's unclaimed, eligible, free records
// against one snapshot of the available balance and total weight. Callers hold mu.
func (l *Ledger) claimable(acc *account, now time.Time) ([]*StakeRecord, []RecordShare, *uint256.Int) {
	available := l.pool.Available()
	total := new(uint256.Int)

	var (
		records []*StakeRecord
		shares  []RecordShare
	)
	for _, r := range acc.records {
		if r.Claimed || r.Pending() || !IsEligible(*r, now) {
			continue
		}
		s := share(available, r.Weight, l.pool.TotalWeight)
		if s.IsZero() {
			continue
		}
		records = append(records, r)
		shares = append(shares, RecordShare{RecordID: r.ID, Amount: s})
		total.Add(total, s)
	}

	return records, shares, total
}

// Distribution is what one account could claim right now
type Distribution struct {
	Account AccountID
	Amount  *uint256.Int
	Records int
}

// PreviewDistribution reports per-account claimable amounts at now without mutating anything.
// Accounts with nothing to claim are omitted; the result is ordered by account.
func (l *Ledger) PreviewDistribution(now time.Time) []Distribution {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Distribution
	for id, acc := range l.accounts {
		records, _, total := l.claimable(acc, now)
		if total.IsZero() {
			continue
		}
		out = append(out, Distribution{Account: id, Amount: total, Records: len(records)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
