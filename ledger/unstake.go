package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type unstakePlan struct {
	id      RequestID
	account AccountID
	record  RecordID
	assets  []AssetID
}

// reserveUnstake marks the selected record in flight once its lockup elapsed
func (l *Ledger) reserveUnstake(id RequestID, caller AccountID, sel Selector, now time.Time) (unstakePlan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[caller]
	if !ok {
		return unstakePlan{}, fmt.Errorf("%w: %s has no stakes", ErrNotFound, caller)
	}

	r := acc.find(sel)
	if r == nil {
		return unstakePlan{}, fmt.Errorf("%w: no record of %s matches %+v", ErrNotFound, caller, sel)
	}
	if r.Pending() {
		return unstakePlan{}, fmt.Errorf("%w: record %d has a request in flight", ErrValidation, r.ID)
	}
	if !IsEligible(*r, now) {
		return unstakePlan{}, fmt.Errorf("%w: record %d unlocks at %s", ErrLockupNotComplete, r.ID, r.EligibleAt().Format(time.RFC3339))
	}

	r.pending = id
	return unstakePlan{id: id, account: caller, record: r.ID, assets: r.AssetIDs()}, nil
}

// commitUnstake removes the record, its index entries and its weight once the assets were returned
func (l *Ledger) commitUnstake(ctx context.Context, p unstakePlan) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[p.account]
	if !ok {
		return fmt.Errorf("%w: %s has no stakes", ErrNotFound, p.account)
	}
	r := acc.find(Selector{RecordID: p.record})
	if r == nil || r.pending != p.id {
		return fmt.Errorf("%w: record %d no longer reserved by unstake %s", ErrValidation, p.record, p.id)
	}

	if err := l.store.DeleteStake(ctx, r.ID); err != nil {
		l.logger.ErrorContext(ctx, "Assets returned but unstake not persisted",
			slog.String("request", p.id.String()),
			slog.Uint64("record", uint64(r.ID)),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	acc.remove(r.ID)
	l.unindexRecord(r)
	l.pool.TotalWeight -= r.Weight

	l.logger.InfoContext(ctx, "Unstake committed",
		slog.String("account", string(p.account)),
		slog.Uint64("record", uint64(r.ID)),
		slog.Uint64("weight", r.Weight),
	)

	return nil
}

// releaseUnstake clears the in-flight marker after a failed asset return
func (l *Ledger) releaseUnstake(p unstakePlan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[p.account]; ok {
		if r := acc.find(Selector{RecordID: p.record}); r != nil && r.pending == p.id {
			r.pending = RequestID{}
		}
	}
}
