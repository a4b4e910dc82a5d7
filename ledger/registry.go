package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"
)

// StakeDraft describes a record about to be committed
type StakeDraft struct {
	Owner    AccountID
	Assets   []StakedAsset
	StakedAt time.Time
}

func (d StakeDraft) assetIDs() []AssetID {
	ids := make([]AssetID, len(d.Assets))
	for i, a := range d.Assets {
		ids[i] = a.ID
	}
	return ids
}

// commitStakes is the single commit point for new records. It re-validates the
// index, persists all drafts in one write and applies them in memory.
func (l *Ledger) commitStakes(ctx context.Context, drafts []StakeDraft) ([]StakeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var assets []AssetID
	for _, d := range drafts {
		assets = append(assets, d.assetIDs()...)
	}
	if err := l.unindexed(assets); err != nil {
		return nil, err
	}

	records := make([]StakeRecord, len(drafts))
	for i, d := range drafts {
		r := StakeRecord{
			ID:             l.nextRecordID + RecordID(i),
			Owner:          d.Owner,
			Assets:         d.Assets,
			StakedAt:       d.StakedAt,
			LockupPeriod:   l.lockup,
			ClaimedRewards: new(uint256.Int),
		}
		for _, a := range d.Assets {
			r.Weight += l.weights.Of(a.Class)
		}
		records[i] = r
	}

	if err := l.store.SaveStakes(ctx, records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	out := make([]StakeRecord, len(records))
	for i := range records {
		r := records[i].clone()
		acc := l.accountFor(r.Owner)
		acc.records = append(acc.records, &r)
		l.indexRecord(&r)
		l.pool.TotalWeight += r.Weight
		out[i] = r.clone()
	}
	l.nextRecordID += RecordID(len(records))

	for _, r := range out {
		l.logger.InfoContext(ctx, "Stake committed",
			slog.String("account", string(r.Owner)),
			slog.Uint64("record", uint64(r.ID)),
			slog.Int("assets", len(r.Assets)),
			slog.Uint64("weight", r.Weight),
		)
	}

	return out, nil
}

// accountFor creates the account ledger lazily. Callers hold mu.
func (l *Ledger) accountFor(id AccountID) *account {
	acc, ok := l.accounts[id]
	if !ok {
		acc = &account{totalClaimed: new(uint256.Int)}
		l.accounts[id] = acc
	}
	return acc
}

// StakeView is the read model of one stake record
type StakeView struct {
	RecordID       RecordID
	AssetIDs       []AssetID
	Queens         int
	Workers        int
	Drones         int
	Weight         uint64
	StakedAt       time.Time
	LockupPeriod   time.Duration
	EligibleAt     time.Time
	Claimed        bool
	ClaimedRewards *uint256.Int
	Pending        bool
}

func viewOf(r *StakeRecord) StakeView {
	v := StakeView{
		RecordID:       r.ID,
		AssetIDs:       r.AssetIDs(),
		Weight:         r.Weight,
		StakedAt:       r.StakedAt,
		LockupPeriod:   r.LockupPeriod,
		EligibleAt:     r.EligibleAt(),
		Claimed:        r.Claimed,
		ClaimedRewards: new(uint256.Int).Set(orZero(r.ClaimedRewards)),
		Pending:        r.Pending(),
	}
	for _, a := range r.Assets {
		switch a.Class {
		case ClassQueen:
			v.Queens++
		case ClassWorker:
			v.Workers++
		default:
			v.Drones++
		}
	}
	return v
}

// UserStakes lists the account's records in staking order; unknown accounts have none
func (l *Ledger) UserStakes(id AccountID) []StakeView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[id]
	if !ok {
		return []StakeView{}
	}

	views := make([]StakeView, len(acc.records))
	for i, r := range acc.records {
		views[i] = viewOf(r)
	}
	return views
}

// AccountSummary aggregates one account ledger
type AccountSummary struct {
	Account      AccountID
	Records      int
	Weight       uint64
	TotalClaimed *uint256.Int
}

// AccountSummary returns the account's totals or ErrStakerNotFound
func (l *Ledger) AccountSummary(id AccountID) (AccountSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[id]
	if !ok {
		return AccountSummary{}, fmt.Errorf("%w: %s", ErrStakerNotFound, id)
	}

	s := AccountSummary{
		Account:      id,
		Records:      len(acc.records),
		TotalClaimed: new(uint256.Int).Set(acc.totalClaimed),
	}
	for _, r := range acc.records {
		s.Weight += r.Weight
	}
	return s, nil
}
