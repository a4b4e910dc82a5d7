package ledgertest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/ledger"
)

// Store is an in-memory ledger.Store. Writes can be made to fail with FailWith.
type Store struct {
	mu         sync.Mutex
	records    map[ledger.RecordID]ledger.StakeRecord
	order      []ledger.RecordID
	accounts   map[ledger.AccountID]*uint256.Int
	accOrder   []ledger.AccountID
	balance    *uint256.Int
	lastDist   time.Time
	authority  ledger.AccountID
	fundings   []ledger.FundingRecord
	writes     int
	failWrites error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		records:  make(map[ledger.RecordID]ledger.StakeRecord),
		accounts: make(map[ledger.AccountID]*uint256.Int),
		balance:  new(uint256.Int),
	}
}

// FailWith makes every subsequent write return err; nil restores normal behaviour
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// SeedPool sets the persisted pool balance and last distribution time
func (s *Store) SeedPool(balance *uint256.Int, lastDistribution time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = new(uint256.Int).Set(balance)
	s.lastDist = lastDistribution
}

// Writes counts successful writes
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Fundings returns the persisted funding history
func (s *Store) Fundings() []ledger.FundingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fundings)
}

// Balance returns the persisted pool balance
func (s *Store) Balance() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.balance)
}

func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAccount := make(map[ledger.AccountID][]ledger.StakeRecord)
	for _, id := range s.order {
		r := s.records[id]
		byAccount[r.Owner] = append(byAccount[r.Owner], r)
	}

	snap := ledger.Snapshot{
		Pool: ledger.PoolState{
			Balance:          new(uint256.Int).Set(s.balance),
			Reserved:         new(uint256.Int),
			LastDistribution: s.lastDist,
		},
		FundingAuthority: s.authority,
	}
	for _, id := range s.accOrder {
		snap.Accounts = append(snap.Accounts, ledger.AccountLedger{
			ID:           id,
			Records:      byAccount[id],
			TotalClaimed: new(uint256.Int).Set(s.accounts[id]),
		})
	}
	return snap, nil
}

func (s *Store) SaveStakes(ctx context.Context, records []ledger.StakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}
	for _, r := range records {
		if _, ok := s.accounts[r.Owner]; !ok {
			s.accounts[r.Owner] = new(uint256.Int)
			s.accOrder = append(s.accOrder, r.Owner)
		}
		r.Assets = slices.Clone(r.Assets)
		s.records[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	s.writes++
	return nil
}

func (s *Store) SaveClaim(ctx context.Context, c ledger.ClaimCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}
	for _, sh := range c.Shares {
		r := s.records[sh.RecordID]
		r.Claimed = true
		r.ClaimedRewards = new(uint256.Int).Set(sh.Amount)
		s.records[sh.RecordID] = r
	}
	s.accounts[c.Account] = new(uint256.Int).Set(c.AccountTotal)
	s.balance = new(uint256.Int).Set(c.PoolBalance)
	s.lastDist = c.ClaimedAt
	s.writes++
	return nil
}

func (s *Store) DeleteStake(ctx context.Context, id ledger.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(r ledger.RecordID) bool { return r == id })
	s.writes++
	return nil
}

func (s *Store) SaveFunding(ctx context.Context, f ledger.FundingCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}
	s.fundings = append(s.fundings, f.Record)
	s.balance = new(uint256.Int).Set(f.PoolBalance)
	s.writes++
	return nil
}

func (s *Store) StartDistributionSchedule(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}
	if s.lastDist.IsZero() {
		s.lastDist = at
		s.writes++
	}
	return nil
}

func (s *Store) SaveFundingAuthority(ctx context.Context, authority ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return s.failWrites
	}
	s.authority = authority
	s.writes++
	return nil
}
