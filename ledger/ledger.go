package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/pkg/clock"
	"github.com/screwyprof/hivestake/pkg/logger"
)

// DefaultDistributionInterval separates two reward distributions
const DefaultDistributionInterval = 30 * 24 * time.Hour

// AccountID identifies an account on the registry and the settlement ledger
type AccountID string

// AssetID identifies a non-fungible asset on the registry
type AssetID string

// RecordID identifies a stake record; assigned by the ledger, never reused
type RecordID uint64

// StakedAsset is one asset of a stake record with its class
type StakedAsset struct {
	ID    AssetID
	Class Class
}

// StakeRecord groups assets staked together by one account
type StakeRecord struct {
	ID             RecordID
	Owner          AccountID
	Assets         []StakedAsset
	Weight         uint64
	StakedAt       time.Time
	LockupPeriod   time.Duration
	Claimed        bool
	ClaimedRewards *uint256.Int

	// pending is the request holding the record while a claim or unstake is outstanding
	pending RequestID
}

// EligibleAt is the first instant claim and unstake are allowed
func (r StakeRecord) EligibleAt() time.Time {
	return r.StakedAt.Add(r.LockupPeriod)
}

// Pending reports whether a claim or unstake request holds the record
func (r StakeRecord) Pending() bool {
	return r.pending != RequestID{}
}

// AssetIDs lists the record's assets in staking order
func (r StakeRecord) AssetIDs() []AssetID {
	ids := make([]AssetID, len(r.Assets))
	for i, a := range r.Assets {
		ids[i] = a.ID
	}
	return ids
}

func (r StakeRecord) clone() StakeRecord {
	c := r
	c.Assets = slices.Clone(r.Assets)
	c.ClaimedRewards = new(uint256.Int).Set(orZero(r.ClaimedRewards))
	c.pending = RequestID{}
	return c
}

// AccountLedger is the persisted form of one account's stakes
type AccountLedger struct {
	ID           AccountID
	Records      []StakeRecord
	TotalClaimed *uint256.Int
}

type account struct {
	records      []*StakeRecord
	totalClaimed *uint256.Int
}

func (a *account) find(sel Selector) *StakeRecord {
	for _, r := range a.records {
		if sel.matches(r) {
			return r
		}
	}
	return nil
}

func (a *account) remove(id RecordID) {
	a.records = slices.DeleteFunc(a.records, func(r *StakeRecord) bool { return r.ID == id })
}

// Selector picks one record of an account, by record id or by one of its assets
type Selector struct {
	RecordID RecordID
	AssetID  AssetID
}

func (s Selector) valid() bool {
	return (s.RecordID != 0) != (s.AssetID != "")
}

func (s Selector) matches(r *StakeRecord) bool {
	if s.RecordID != 0 {
		return r.ID == s.RecordID
	}
	return slices.ContainsFunc(r.Assets, func(a StakedAsset) bool { return a.ID == s.AssetID })
}

// Accounts names the well-known accounts the ledger moves value between
type Accounts struct {
	// Custody holds staked assets on the registry
	Custody AccountID
	// Pool holds reward funds on the settlement ledger
	Pool AccountID
	// Treasury backs pool funding
	Treasury AccountID
	// FundingAuthority is the only account allowed to fund the pool, unless a persisted handover overrides it
	FundingAuthority AccountID
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Option configures the Ledger
type Option func(*Ledger)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.logger = log }
}

// WithWeights overrides the class weight table
func WithWeights(w Weights) Option {
	return func(l *Ledger) { l.weights = w }
}

// WithLockupPeriod overrides the lockup applied to new records
func WithLockupPeriod(d time.Duration) Option {
	return func(l *Ledger) { l.lockup = d }
}

// WithDistributionInterval overrides the spacing of distributions
func WithDistributionInterval(d time.Duration) Option {
	return func(l *Ledger) { l.interval = d }
}

// Ledger owns stake records, the global stake index and the reward pool.
// Every mutation happens under mu, persists first and then applies in memory.
type Ledger struct {
	mu           sync.RWMutex
	accounts     map[AccountID]*account
	index        map[AssetID]AccountID
	pool         PoolState
	authority    AccountID
	nextRecordID RecordID

	ids      Accounts
	store    Store
	clock    Clock
	logger   *slog.Logger
	weights  Weights
	lockup   time.Duration
	interval time.Duration
}

// New creates an empty ledger. Call Restore to load persisted state.
func New(ids Accounts, store Store, opts ...Option) *Ledger {
	l := &Ledger{
		accounts:     make(map[AccountID]*account),
		index:        make(map[AssetID]AccountID),
		authority:    ids.FundingAuthority,
		nextRecordID: 1,
		ids:          ids,
		store:        store,
		clock:        clock.SystemClock{},
		logger:       slog.Default(),
		weights:      DefaultWeights,
		lockup:       DefaultLockupPeriod,
		interval:     DefaultDistributionInterval,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.pool = PoolState{
		Balance:          new(uint256.Int),
		Reserved:         new(uint256.Int),
		LastDistribution: l.clock.Now(),
	}

	return l
}

// Accounts returns the configured well-known accounts
func (l *Ledger) Accounts() Accounts {
	return l.ids
}

// Restore replaces in-memory state with the store's snapshot and checks invariants
func (l *Ledger) Restore(ctx context.Context) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading snapshot: %w", ErrPersistFailed, err)
	}

	accounts := make(map[AccountID]*account, len(snap.Accounts))
	index := make(map[AssetID]AccountID)
	next := RecordID(1)
	var total uint64

	for _, al := range snap.Accounts {
		acc := &account{totalClaimed: new(uint256.Int).Set(orZero(al.TotalClaimed))}
		for _, rec := range al.Records {
			r := rec.clone()
			r.Owner = al.ID
			for _, a := range r.Assets {
				if owner, ok := index[a.ID]; ok {
					return fmt.Errorf("%w: asset %s restored for %s and %s", ErrValidation, a.ID, owner, al.ID)
				}
				index[a.ID] = al.ID
			}
			total += r.Weight
			if r.ID >= next {
				next = r.ID + 1
			}
			acc.records = append(acc.records, &r)
		}
		accounts[al.ID] = acc
	}

	lastDist := snap.Pool.LastDistribution
	if lastDist.IsZero() {
		lastDist = l.clock.Now()
		if err := l.store.StartDistributionSchedule(ctx, lastDist); err != nil {
			return fmt.Errorf("%w: starting distribution schedule: %w", ErrPersistFailed, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts = accounts
	l.index = index
	l.nextRecordID = next
	l.pool = PoolState{
		Balance:          new(uint256.Int).Set(orZero(snap.Pool.Balance)),
		Reserved:         new(uint256.Int),
		TotalWeight:      total,
		LastDistribution: lastDist,
	}
	if snap.FundingAuthority != "" {
		l.authority = snap.FundingAuthority
	}

	l.logger.InfoContext(ctx, "Ledger restored",
		slog.Int("accounts", len(accounts)),
		slog.Int("assets", len(index)),
		slog.Uint64("totalWeight", total),
		logger.Amount("balance", l.pool.Balance),
	)

	return nil
}

// CheckInvariants verifies the weight sum and the index against the account ledgers
func (l *Ledger) CheckInvariants() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total uint64
	seen := make(map[AssetID]AccountID, len(l.index))
	for id, acc := range l.accounts {
		for _, r := range acc.records {
			total += r.Weight
			for _, a := range r.Assets {
				if prev, ok := seen[a.ID]; ok {
					return fmt.Errorf("asset %s held by %s and %s", a.ID, prev, id)
				}
				seen[a.ID] = id
				if l.index[a.ID] != id {
					return fmt.Errorf("asset %s indexed to %q, held by %s", a.ID, l.index[a.ID], id)
				}
			}
		}
	}

	if len(seen) != len(l.index) {
		return fmt.Errorf("index has %d assets, ledgers hold %d", len(l.index), len(seen))
	}
	if total != l.pool.TotalWeight {
		return fmt.Errorf("total weight %d, records sum to %d", l.pool.TotalWeight, total)
	}
	if l.pool.Reserved.Gt(l.pool.Balance) {
		return fmt.Errorf("reserved %s exceeds balance %s", l.pool.Reserved.Dec(), l.pool.Balance.Dec())
	}

	return nil
}

func (l *Ledger) now() time.Time {
	return l.clock.Now()
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
