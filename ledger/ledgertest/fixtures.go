package ledgertest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/pkg/clock"
	"github.com/screwyprof/hivestake/pkg/registry"
)

// Well-known accounts used across tests
const (
	Custody   ledger.AccountID = "custody.hive"
	Pool      ledger.AccountID = "pool.hive"
	Treasury  ledger.AccountID = "treasury.hive"
	Authority ledger.AccountID = "owner.hive"
	Feeder    ledger.AccountID = "feed.hive"
)

// Epoch is the fixed start of every test clock
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Accounts returns the test account set
func Accounts() ledger.Accounts {
	return ledger.Accounts{
		Custody:          Custody,
		Pool:             Pool,
		Treasury:         Treasury,
		FundingAuthority: Authority,
	}
}

// Trait builds a metadata attribute
func Trait(traitType, value string) registry.Attribute {
	return registry.Attribute{TraitType: traitType, Value: value}
}

// Queen, Worker and Drone are attribute sets for each class
var (
	Queen  = []registry.Attribute{Trait("Body", "Queen")}
	Worker = []registry.Attribute{Trait("Wings", "Diamond")}
	Drone  = []registry.Attribute{Trait("Body", "Striped")}
)

// Token builds a token held in custody and deposited by depositor
func Token(id string, depositor ledger.AccountID, attrs []registry.Attribute) registry.Token {
	return registry.Token{
		TokenID:     id,
		OwnerID:     string(Custody),
		DepositorID: string(depositor),
		Metadata: registry.Metadata{
			ReferenceBlob: registry.ReferenceBlob{Attributes: attrs},
		},
	}
}

// Discard is a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Env bundles a ledger, its orchestrator and the fakes behind them
type Env struct {
	Clock      *clock.Manual
	Store      *Store
	Registry   *Registry
	Settlement *Settlement
	Ledger     *ledger.Ledger
	Orch       *ledger.Orchestrator
	Ingestor   *ledger.BatchIngestor
}

// NewEnv wires a ledger over fakes; the orchestrator is not started
func NewEnv(t *testing.T, opts ...ledger.Option) *Env {
	t.Helper()

	clk := clock.NewManual(Epoch)
	store := NewStore()
	reg := NewRegistry()
	stl := NewSettlement()

	opts = append([]ledger.Option{ledger.WithClock(clk), ledger.WithLogger(Discard())}, opts...)
	l := ledger.New(Accounts(), store, opts...)

	return &Env{
		Clock:      clk,
		Store:      store,
		Registry:   reg,
		Settlement: stl,
		Ledger:     l,
		Orch:       ledger.NewOrchestrator(l, reg, stl),
		Ingestor:   ledger.NewBatchIngestor(l, reg, ledger.WithIngestAuthority(Feeder)),
	}
}

// Start runs the orchestrator until the test ends, draining its events
func (e *Env) Start(t *testing.T, opts ...func(*ledger.Subscriber)) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	events, done := e.Orch.Start(ctx)
	closer := ledger.NewSubscriber(events, opts...)

	t.Cleanup(func() {
		cancel()
		<-done
		closer()
	})
}

// Await waits for a request to finish, failing the test after a few seconds
func (e *Env) Await(t *testing.T, id ledger.RequestID) ledger.Request {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	req, err := e.Orch.Await(ctx, id)
	if err != nil {
		t.Fatalf("awaiting request %s: %v", id, err)
	}
	return req
}

// StakeNow stakes asset for caller through the orchestrator and waits for the commit
func (e *Env) StakeNow(t *testing.T, caller ledger.AccountID, asset string, attrs []registry.Attribute) ledger.RecordID {
	t.Helper()

	e.Registry.Put(Token(asset, caller, attrs))
	id, err := e.Orch.Stake(t.Context(), caller, ledger.AssetID(asset))
	if err != nil {
		t.Fatalf("stake %s: %v", asset, err)
	}

	req := e.Await(t, id)
	if req.State != ledger.StateCommitted {
		t.Fatalf("stake %s ended %s: %v", asset, req.State, req.Err)
	}
	return req.RecordID
}

// FundNow funds the pool with amount through the orchestrator and waits for the commit
func (e *Env) FundNow(t *testing.T, amount uint64) {
	t.Helper()

	id, err := e.Orch.Fund(t.Context(), Authority, uint256.NewInt(amount))
	if err != nil {
		t.Fatalf("fund %d: %v", amount, err)
	}

	req := e.Await(t, id)
	if req.State != ledger.StateCommitted {
		t.Fatalf("fund %d ended %s: %v", amount, req.State, req.Err)
	}
}
