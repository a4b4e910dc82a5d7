package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/ledger/ledgertest"
	"github.com/screwyprof/hivestake/pkg/clock"
	"github.com/screwyprof/hivestake/pkg/registry"
)

func TestLedgerRestore(t *testing.T) {
	t.Parallel()

	t.Run("it rebuilds records, index, weights and pool from the store", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.StakeNow(t, alice, "bee-a", ledgertest.Queen)
		env.StakeNow(t, bob, "bee-b", ledgertest.Queen)
		env.FundNow(t, 1000)
		env.Clock.Advance(ledger.DefaultLockupPeriod)
		receipt, err := env.Orch.Claim(t.Context(), alice)
		require.NoError(t, err)
		env.Await(t, receipt.RequestID)

		restored := ledger.New(ledgertest.Accounts(), env.Store, ledger.WithClock(env.Clock), ledger.WithLogger(ledgertest.Discard()))

		// Act
		err = restored.Restore(t.Context())

		// Assert
		require.NoError(t, err)
		require.NoError(t, restored.CheckInvariants())
		assert.Equal(t, env.Ledger.UserStakes(alice), restored.UserStakes(alice))
		assert.Equal(t, env.Ledger.UserStakes(bob), restored.UserStakes(bob))
		assert.Equal(t, env.Ledger.Pool(), restored.Pool())

		owner, ok := restored.Owner("bee-b")
		assert.True(t, ok)
		assert.Equal(t, bob, owner)

		summary, err := restored.AccountSummary(alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), summary.TotalClaimed.Uint64())
	})

	t.Run("it continues record ids after the highest restored one", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		last := env.StakeNow(t, alice, "bee-a", ledgertest.Queen)

		restored := ledger.New(ledgertest.Accounts(), env.Store, ledger.WithClock(env.Clock), ledger.WithLogger(ledgertest.Discard()))
		require.NoError(t, restored.Restore(t.Context()))
		env.Registry.Put(ledgertest.Token("bee-b", "", ledgertest.Drone))

		// Act
		ok, err := ledger.NewBatchIngestor(restored, env.Registry).ProcessBatchTransfer(t.Context(), []ledger.TransferEvent{
			{PreviousOwner: bob, Destination: ledgertest.Custody, AssetIDs: []ledger.AssetID{"bee-b"}},
		})

		// Assert
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, last+1, restored.UserStakes(bob)[0].RecordID)
	})

	t.Run("it uses the persisted pool state", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := ledgertest.NewStore()
		lastDist := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
		store.SeedPool(uint256.NewInt(42), lastDist)
		l := ledger.New(ledgertest.Accounts(), store, ledger.WithLogger(ledgertest.Discard()))

		// Act
		err := l.Restore(t.Context())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(42), l.RewardPoolBalance().Uint64())
		assert.Equal(t, lastDist, l.LastDistributionTime())
	})

	t.Run("it persists the first distribution reference so restarts keep the schedule", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := ledgertest.NewStore()
		clk := clock.NewManual(ledgertest.Epoch)
		first := ledger.New(ledgertest.Accounts(), store, ledger.WithClock(clk), ledger.WithLogger(ledgertest.Discard()))
		require.NoError(t, first.Restore(t.Context()))
		clk.Advance(10 * 24 * time.Hour)

		// Act
		second := ledger.New(ledgertest.Accounts(), store, ledger.WithClock(clk), ledger.WithLogger(ledgertest.Discard()))
		err := second.Restore(t.Context())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, ledgertest.Epoch, second.LastDistributionTime())
		assert.Equal(t, uint64(20), second.DaysUntilNextDistribution(clk.Now()))
		assert.Equal(t, 1, store.Writes())
	})

	t.Run("it fails the restore when the schedule cannot be stored", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := ledgertest.NewStore()
		store.FailWith(errors.New("read-only replica"))
		l := ledger.New(ledgertest.Accounts(), store, ledger.WithLogger(ledgertest.Discard()))

		// Act
		err := l.Restore(t.Context())

		// Assert
		assert.ErrorIs(t, err, ledger.ErrPersistFailed)
	})

	t.Run("it refuses a snapshot holding one asset twice", func(t *testing.T) {
		t.Parallel()

		// Arrange
		rec := func(id ledger.RecordID) ledger.StakeRecord {
			return ledger.StakeRecord{ID: id, Assets: []ledger.StakedAsset{{ID: "bee-1"}}, Weight: 20}
		}
		store := snapshotStore{snap: ledger.Snapshot{Accounts: []ledger.AccountLedger{
			{ID: alice, Records: []ledger.StakeRecord{rec(1)}},
			{ID: bob, Records: []ledger.StakeRecord{rec(2)}},
		}}}
		l := ledger.New(ledgertest.Accounts(), store, ledger.WithLogger(ledgertest.Discard()))

		// Act
		err := l.Restore(t.Context())

		// Assert
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})

	t.Run("it wraps load failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		l := ledger.New(ledgertest.Accounts(), snapshotStore{err: errors.New("no database")}, ledger.WithLogger(ledgertest.Discard()))

		// Act
		err := l.Restore(t.Context())

		// Assert
		assert.ErrorIs(t, err, ledger.ErrPersistFailed)
	})
}

func TestLedgerInvariantsUnderMixedTraffic(t *testing.T) {
	t.Parallel()

	// Arrange
	env := ledgertest.NewEnv(t)
	env.Start(t)
	env.FundNow(t, 10_000)

	assets := []string{"bee-1", "bee-2", "bee-3", "bee-4", "bee-5", "bee-6"}
	classes := [][]registry.Attribute{ledgertest.Queen, ledgertest.Worker, ledgertest.Drone}
	for i, a := range assets {
		caller := alice
		if i%2 == 1 {
			caller = bob
		}
		env.StakeNow(t, caller, a, classes[i%len(classes)])
		require.NoError(t, env.Ledger.CheckInvariants())
	}
	env.Clock.Advance(ledger.DefaultLockupPeriod)

	// Act
	receipt, err := env.Orch.Claim(t.Context(), alice)
	require.NoError(t, err)
	env.Await(t, receipt.RequestID)
	require.NoError(t, env.Ledger.CheckInvariants())

	id, err := env.Orch.Unstake(t.Context(), bob, ledger.Selector{AssetID: "bee-2"})
	require.NoError(t, err)
	env.Await(t, id)

	// Assert
	require.NoError(t, env.Ledger.CheckInvariants())
	var sum uint64
	for _, acc := range []ledger.AccountID{alice, bob} {
		for _, s := range env.Ledger.UserStakes(acc) {
			sum += s.Weight
		}
	}
	assert.Equal(t, env.Ledger.TotalStakedPoints(), sum)
	assert.False(t, env.Ledger.IsStaked("bee-2"))
}

// snapshotStore serves a fixed snapshot and refuses writes
type snapshotStore struct {
	snap ledger.Snapshot
	err  error
}

func (s snapshotStore) Load(context.Context) (ledger.Snapshot, error) { return s.snap, s.err }
func (s snapshotStore) SaveStakes(context.Context, []ledger.StakeRecord) error {
	return errors.New("read only")
}
func (s snapshotStore) SaveClaim(context.Context, ledger.ClaimCommit) error {
	return errors.New("read only")
}
func (s snapshotStore) DeleteStake(context.Context, ledger.RecordID) error {
	return errors.New("read only")
}
func (s snapshotStore) SaveFunding(context.Context, ledger.FundingCommit) error {
	return errors.New("read only")
}
func (s snapshotStore) SaveFundingAuthority(context.Context, ledger.AccountID) error {
	return errors.New("read only")
}
func (s snapshotStore) StartDistributionSchedule(context.Context, time.Time) error {
	return errors.New("read only")
}
