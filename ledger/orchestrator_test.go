package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/ledger/ledgertest"
	"github.com/screwyprof/hivestake/pkg/registry"
)

const (
	alice ledger.AccountID = "alice.near"
	bob   ledger.AccountID = "bob.near"
)

func TestOrchestratorStake(t *testing.T) {
	t.Parallel()

	t.Run("it commits a verified asset on completion", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.Put(ledgertest.Token("bee-1", alice, ledgertest.Queen))

		// Act
		id, err := env.Orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)
		req := env.Await(t, id)

		// Assert
		assert.Equal(t, ledger.StateCommitted, req.State)
		assert.Equal(t, ledger.KindStake, req.Kind)
		assert.NotZero(t, req.RecordID)

		owner, ok := env.Ledger.Owner("bee-1")
		assert.True(t, ok)
		assert.Equal(t, alice, owner)
		assert.Equal(t, uint64(50), env.Ledger.TotalStakedPoints())

		stakes := env.Ledger.UserStakes(alice)
		require.Len(t, stakes, 1)
		assert.Equal(t, []ledger.AssetID{"bee-1"}, stakes[0].AssetIDs)
		assert.Equal(t, 1, stakes[0].Queens)
		assert.Equal(t, ledgertest.Epoch, stakes[0].StakedAt)
		assert.Equal(t, ledger.DefaultLockupPeriod, stakes[0].LockupPeriod)
		assert.False(t, stakes[0].Claimed)
		require.NoError(t, env.Ledger.CheckInvariants())
	})

	t.Run("it does not mutate the ledger before completion", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.Put(ledgertest.Token("bee-1", alice, ledgertest.Queen))
		env.Registry.Hold()

		// Act
		id, err := env.Orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)

		// Assert
		req, err := env.Orch.Request(id)
		require.NoError(t, err)
		assert.Equal(t, ledger.StateRequested, req.State)
		assert.False(t, env.Ledger.IsStaked("bee-1"))
		assert.Zero(t, env.Ledger.TotalStakedPoints())
		assert.Equal(t, 1, env.Orch.Outstanding())

		env.Registry.Release()
		assert.Equal(t, ledger.StateCommitted, env.Await(t, id).State)
		assert.Zero(t, env.Orch.Outstanding())
	})

	t.Run("it rejects an asset that is already indexed at request time", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.StakeNow(t, alice, "bee-1", ledgertest.Drone)

		// Act
		_, err := env.Orch.Stake(t.Context(), bob, "bee-1")

		// Assert
		assert.ErrorIs(t, err, ledger.ErrAlreadyStaked)
	})

	t.Run("it lets exactly one of two concurrent stakes of the same asset commit", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.Put(ledgertest.Token("bee-x", alice, ledgertest.Worker))
		env.Registry.Hold()

		var (
			wg   sync.WaitGroup
			ids  [2]ledger.RequestID
			errs [2]error
		)
		for i := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ids[i], errs[i] = env.Orch.Stake(context.Background(), alice, "bee-x")
			}()
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		// Act
		env.Registry.Release()
		first := env.Await(t, ids[0])
		second := env.Await(t, ids[1])

		// Assert
		states := []ledger.RequestState{first.State, second.State}
		assert.ElementsMatch(t, []ledger.RequestState{ledger.StateCommitted, ledger.StateAborted}, states)

		loser := first
		if first.State == ledger.StateCommitted {
			loser = second
		}
		assert.ErrorIs(t, loser.Err, ledger.ErrAlreadyStaked)

		owner, ok := env.Ledger.Owner("bee-x")
		require.True(t, ok)
		assert.Equal(t, alice, owner)
		assert.Len(t, env.Ledger.UserStakes(owner), 1)
		assert.Equal(t, uint64(30), env.Ledger.TotalStakedPoints())
		require.NoError(t, env.Ledger.CheckInvariants())
	})

	t.Run("it aborts with VerificationFailed when the registry query fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.FailLookups(errors.New("registry unreachable"))

		// Act
		id, err := env.Orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)
		req := env.Await(t, id)

		// Assert
		assert.Equal(t, ledger.StateAborted, req.State)
		assert.ErrorIs(t, req.Err, ledger.ErrVerificationFailed)
		assert.False(t, env.Ledger.IsStaked("bee-1"))
		assert.Zero(t, env.Store.Writes())
	})

	t.Run("it aborts with VerificationFailed when the budget is exhausted", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		orch := ledger.NewOrchestrator(env.Ledger, env.Registry, env.Settlement,
			ledger.WithVerificationBudget(10*time.Millisecond))
		events, done := orch.Start(t.Context())
		closer := ledger.NewSubscriber(events)
		t.Cleanup(func() { <-done; closer() })

		env.Registry.Put(ledgertest.Token("bee-1", alice, ledgertest.Queen))
		env.Registry.Hold()
		t.Cleanup(env.Registry.Release)

		// Act
		id, err := orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()
		req, err := orch.Await(ctx, id)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, ledger.StateAborted, req.State)
		assert.ErrorIs(t, req.Err, ledger.ErrVerificationFailed)
		assert.ErrorIs(t, req.Err, context.DeadlineExceeded)
	})

	t.Run("it aborts when the asset is not in custody", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		token := ledgertest.Token("bee-1", alice, ledgertest.Queen)
		token.OwnerID = string(alice)
		env.Registry.Put(token)

		// Act
		id, err := env.Orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)
		req := env.Await(t, id)

		// Assert
		assert.ErrorIs(t, req.Err, ledger.ErrVerificationFailed)
		assert.False(t, env.Ledger.IsStaked("bee-1"))
	})

	t.Run("it aborts when the registry names no depositor", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.Put(ledgertest.Token("bee-1", "", ledgertest.Queen))

		// Act
		id, err := env.Orch.Stake(t.Context(), bob, "bee-1")
		require.NoError(t, err)
		req := env.Await(t, id)

		// Assert
		assert.Equal(t, ledger.StateAborted, req.State)
		assert.ErrorIs(t, req.Err, ledger.ErrVerificationFailed)
		assert.False(t, env.Ledger.IsStaked("bee-1"))
		assert.Empty(t, env.Ledger.UserStakes(bob))
	})

	t.Run("it aborts when another account deposited the asset", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.Put(ledgertest.Token("bee-1", alice, ledgertest.Queen))

		// Act
		id, err := env.Orch.Stake(t.Context(), bob, "bee-1")
		require.NoError(t, err)
		req := env.Await(t, id)

		// Assert
		assert.ErrorIs(t, req.Err, ledger.ErrAuthorization)
		assert.Empty(t, env.Ledger.UserStakes(bob))
	})

	t.Run("it aborts with PersistFailed and leaves memory untouched when the store fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Start(t)
		env.Registry.Put(ledgertest.Token("bee-1", alice, ledgertest.Queen))
		env.Store.FailWith(errors.New("disk full"))

		// Act
		id, err := env.Orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)
		req := env.Await(t, id)

		// Assert
		assert.ErrorIs(t, req.Err, ledger.ErrPersistFailed)
		assert.False(t, env.Ledger.IsStaked("bee-1"))
		assert.Zero(t, env.Ledger.TotalStakedPoints())
	})

	t.Run("it validates input synchronously", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)

		// Act
		_, errNoAsset := env.Orch.Stake(t.Context(), alice, "")
		_, errNoCaller := env.Orch.Stake(t.Context(), "", "bee-1")

		// Assert
		assert.ErrorIs(t, errNoAsset, ledger.ErrValidation)
		assert.ErrorIs(t, errNoCaller, ledger.ErrValidation)
	})

	t.Run("it applies a configured weight table", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t, ledger.WithWeights(ledger.Weights{Queen: 7, Worker: 5, Drone: 3}))
		env.Start(t)

		// Act
		env.StakeNow(t, alice, "bee-1", ledgertest.Queen)
		env.StakeNow(t, alice, "bee-2", ledgertest.Worker)
		env.StakeNow(t, alice, "bee-3", ledgertest.Drone)

		// Assert
		assert.Equal(t, uint64(15), env.Ledger.TotalStakedPoints())
	})
}

func TestOrchestratorEvents(t *testing.T) {
	t.Parallel()

	t.Run("it emits one event per completion and a shutdown", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		env.Registry.Put(ledgertest.Token("bee-1", alice, ledgertest.Queen))

		ctx, cancel := context.WithCancel(t.Context())
		events, done := env.Orch.Start(ctx)

		var (
			mu        sync.Mutex
			started   int
			committed []ledger.Request
			aborted   []ledger.Request
			shutdown  []ledger.OrchestratorShutdown
		)
		closer := ledger.NewSubscriber(events,
			ledger.OnStarted(func(ledger.OrchestratorStarted) { mu.Lock(); started++; mu.Unlock() }),
			ledger.OnRequestCommitted(func(e ledger.RequestCommitted) { mu.Lock(); committed = append(committed, e.Request); mu.Unlock() }),
			ledger.OnRequestAborted(func(e ledger.RequestAborted) { mu.Lock(); aborted = append(aborted, e.Request); mu.Unlock() }),
			ledger.OnShutdown(func(e ledger.OrchestratorShutdown) { mu.Lock(); shutdown = append(shutdown, e); mu.Unlock() }),
		)

		// Act
		okID, err := env.Orch.Stake(t.Context(), alice, "bee-1")
		require.NoError(t, err)
		env.Await(t, okID)

		badID, err := env.Orch.Stake(t.Context(), alice, "bee-missing")
		require.NoError(t, err)
		env.Await(t, badID)

		cancel()
		<-done
		closer()

		// Assert
		assert.Equal(t, 1, started)
		require.Len(t, committed, 1)
		assert.Equal(t, okID, committed[0].ID)
		require.Len(t, aborted, 1)
		assert.Equal(t, badID, aborted[0].ID)
		assert.ErrorIs(t, aborted[0].Err, registry.ErrTokenNotFound)
		require.Len(t, shutdown, 1)
		assert.ErrorIs(t, shutdown[0].Reason, context.Canceled)
	})

	t.Run("it refuses new requests after shutdown", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)
		ctx, cancel := context.WithCancel(t.Context())
		events, done := env.Orch.Start(ctx)
		closer := ledger.NewSubscriber(events)
		cancel()
		<-done
		closer()

		// Act
		_, err := env.Orch.Stake(t.Context(), alice, "bee-1")

		// Assert
		assert.ErrorIs(t, err, ledger.ErrShuttingDown)
	})

	t.Run("it reports unknown requests as not found", func(t *testing.T) {
		t.Parallel()

		// Arrange
		env := ledgertest.NewEnv(t)

		// Act
		_, err := env.Orch.Request(ledger.RequestID{1})

		// Assert
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}
