package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/pkg/registry"
	"github.com/screwyprof/hivestake/pkg/settlement"
)

// Default configuration values
const (
	DefaultVerificationBudget = 10 * time.Second
	DefaultRequestRetention   = 24 * time.Hour
)

// Registry answers ownership queries and moves assets out of custody
type Registry interface {
	Token(ctx context.Context, tokenID string) (registry.Token, error)
	BatchTransfer(ctx context.Context, req registry.BatchTransferRequest) error
}

// Settlement moves settlement units between accounts
type Settlement interface {
	Transfer(ctx context.Context, req settlement.TransferRequest) error
}

// OrchestratorOption configures the Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithVerificationBudget bounds the ownership query issued by Stake
func WithVerificationBudget(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.budget = d }
}

// WithRequestRetention controls how long finished requests stay queryable
func WithRequestRetention(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.retention = d }
}

// WithOrchestratorLogger sets the logger
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// completion is delivered once per request; finish runs on the loop goroutine
type completion struct {
	id     RequestID
	finish func(ctx context.Context) (RecordID, error)
}

// Orchestrator splits every operation with an external call into issuance and
// completion. Completions are processed one at a time by the loop started with Start.
type Orchestrator struct {
	ledger     *Ledger
	registry   Registry
	settlement Settlement
	clock      Clock
	logger     *slog.Logger
	budget     time.Duration
	retention  time.Duration

	mu       sync.Mutex
	requests map[RequestID]*request

	completions chan completion
	events      chan Event
	quit        chan struct{}
}

// NewOrchestrator constructs an Orchestrator sharing the ledger's clock
func NewOrchestrator(l *Ledger, reg Registry, stl Settlement, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		ledger:      l,
		registry:    reg,
		settlement:  stl,
		clock:       l.clock,
		logger:      l.logger,
		budget:      DefaultVerificationBudget,
		retention:   DefaultRequestRetention,
		requests:    make(map[RequestID]*request),
		completions: make(chan completion),
		events:      make(chan Event, 10),
		quit:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the completion loop and returns the events channel and done channel.
//
//	events, done := orch.Start(ctx)
//	closer := ledger.NewSubscriber(events, ...)
//	defer func() {
//	  cancel()    // 1. Request shutdown
//	  <-done      // 2. Wait for the loop to exit
//	  closer()    // 3. Wait for events to drain
//	}()
//
// After shutdown new requests fail with ErrShuttingDown and late completions are dropped.
func (o *Orchestrator) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(o.events)
		defer close(done)
		o.run(ctx)
	}()
	return o.events, done
}

func (o *Orchestrator) run(ctx context.Context) {
	o.events <- OrchestratorStarted{StartedAt: o.clock.Now()}

	for {
		select {
		case <-ctx.Done():
			close(o.quit)
			o.events <- OrchestratorShutdown{Reason: ctx.Err(), Outstanding: o.Outstanding()}
			return
		case c := <-o.completions:
			o.complete(ctx, c)
		}
	}
}

// complete is the single resumption point for every request
func (o *Orchestrator) complete(ctx context.Context, c completion) {
	recordID, err := c.finish(ctx)
	now := o.clock.Now()

	o.mu.Lock()
	req, ok := o.requests[c.id]
	if !ok {
		o.mu.Unlock()
		o.logger.ErrorContext(ctx, "Completion for unknown request", slog.String("request", c.id.String()))
		return
	}

	req.DoneAt = now
	if err != nil {
		req.State = StateAborted
		req.Err = err
	} else {
		req.State = StateCommitted
		if recordID != 0 {
			req.RecordID = recordID
		}
	}
	snap := req.snapshot()
	close(req.done)
	o.prune(now)
	o.mu.Unlock()

	if err != nil {
		o.logger.WarnContext(ctx, "Request aborted",
			slog.String("request", snap.ID.String()),
			slog.String("kind", string(snap.Kind)),
			slog.String("caller", string(snap.Caller)),
			slog.Any("error", err),
		)
		o.events <- RequestAborted{Request: snap}
		return
	}

	o.logger.InfoContext(ctx, "Request committed",
		slog.String("request", snap.ID.String()),
		slog.String("kind", string(snap.Kind)),
		slog.String("caller", string(snap.Caller)),
	)
	o.events <- RequestCommitted{Request: snap}
}

// prune forgets finished requests older than the retention. Callers hold mu.
func (o *Orchestrator) prune(now time.Time) {
	cutoff := now.Add(-o.retention)
	for id, r := range o.requests {
		if r.Done() && r.DoneAt.Before(cutoff) {
			delete(o.requests, id)
		}
	}
}

// deliver hands a completion to the loop; it is dropped once the loop has quit
func (o *Orchestrator) deliver(c completion) {
	select {
	case o.completions <- c:
	case <-o.quit:
		o.logger.Warn("Completion dropped after shutdown", slog.String("request", c.id.String()))
	}
}

func (o *Orchestrator) accepting() error {
	select {
	case <-o.quit:
		return ErrShuttingDown
	default:
		return nil
	}
}

func (o *Orchestrator) register(r Request) {
	r.State = StateRequested
	r.IssuedAt = o.clock.Now()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests[r.ID] = &request{Request: r, done: make(chan struct{})}
}

// Stake verifies custody of asset with the registry and stakes it for caller on completion
func (o *Orchestrator) Stake(ctx context.Context, caller AccountID, asset AssetID) (RequestID, error) {
	if caller == "" || asset == "" {
		return RequestID{}, fmt.Errorf("%w: account and asset id are required", ErrValidation)
	}
	if err := o.accepting(); err != nil {
		return RequestID{}, err
	}
	if owner, ok := o.ledger.Owner(asset); ok {
		return RequestID{}, alreadyStaked(asset, owner)
	}

	id := uuid.New()
	o.register(Request{ID: id, Kind: KindStake, Caller: caller, AssetIDs: []AssetID{asset}})

	callCtx := context.WithoutCancel(ctx)
	go func() {
		queryCtx, cancel := context.WithTimeout(callCtx, o.budget)
		token, err := o.registry.Token(queryCtx, string(asset))
		cancel()

		o.deliver(completion{id: id, finish: func(ctx context.Context) (RecordID, error) {
			if err != nil {
				return 0, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
			}
			return o.commitStake(ctx, caller, asset, token)
		}})
	}()

	return id, nil
}

func (o *Orchestrator) commitStake(ctx context.Context, caller AccountID, asset AssetID, token registry.Token) (RecordID, error) {
	class := Classify(token.Metadata)

	if owner, ok := o.ledger.Owner(asset); ok {
		return 0, alreadyStaked(asset, owner)
	}

	custody := o.ledger.ids.Custody
	if AccountID(token.OwnerID) != custody {
		return 0, fmt.Errorf("%w: asset %s is held by %s, not %s", ErrVerificationFailed, asset, token.OwnerID, custody)
	}
	if token.DepositorID == "" {
		return 0, fmt.Errorf("%w: registry names no depositor for asset %s", ErrVerificationFailed, asset)
	}
	if AccountID(token.DepositorID) != caller {
		return 0, fmt.Errorf("%w: asset %s was deposited by %s, not %s", ErrAuthorization, asset, token.DepositorID, caller)
	}

	records, err := o.ledger.commitStakes(ctx, []StakeDraft{{
		Owner:    caller,
		Assets:   []StakedAsset{{ID: asset, Class: class}},
		StakedAt: o.clock.Now(),
	}})
	if err != nil {
		return 0, err
	}
	return records[0].ID, nil
}

// Claim reserves the caller's rewards and issues one payout transfer
func (o *Orchestrator) Claim(ctx context.Context, caller AccountID) (ClaimReceipt, error) {
	if caller == "" {
		return ClaimReceipt{}, fmt.Errorf("%w: account is required", ErrValidation)
	}
	if err := o.accepting(); err != nil {
		return ClaimReceipt{}, err
	}

	id := uuid.New()
	plan, err := o.ledger.reserveClaim(id, caller, o.clock.Now())
	if err != nil {
		return ClaimReceipt{}, err
	}
	o.register(Request{ID: id, Kind: KindClaim, Caller: caller, Amount: plan.total})

	req := settlement.NewTransferRequest(string(o.ledger.ids.Pool), string(caller), plan.total, "claim "+id.String())
	callCtx := context.WithoutCancel(ctx)
	go func() {
		err := o.settlement.Transfer(callCtx, req)

		o.deliver(completion{id: id, finish: func(ctx context.Context) (RecordID, error) {
			if err != nil {
				o.ledger.releaseClaim(plan)
				return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
			}
			return 0, o.ledger.commitClaim(ctx, plan, o.clock.Now())
		}})
	}()

	return ClaimReceipt{RequestID: id, Amount: new(uint256.Int).Set(plan.total)}, nil
}

// Unstake returns the selected record's assets to caller once its lockup elapsed
func (o *Orchestrator) Unstake(ctx context.Context, caller AccountID, sel Selector) (RequestID, error) {
	if caller == "" || !sel.valid() {
		return RequestID{}, fmt.Errorf("%w: account and exactly one of record id or asset id are required", ErrValidation)
	}
	if err := o.accepting(); err != nil {
		return RequestID{}, err
	}

	id := uuid.New()
	plan, err := o.ledger.reserveUnstake(id, caller, sel, o.clock.Now())
	if err != nil {
		return RequestID{}, err
	}
	o.register(Request{ID: id, Kind: KindUnstake, Caller: caller, RecordID: plan.record, AssetIDs: plan.assets})

	tokens := make([]string, len(plan.assets))
	for i, a := range plan.assets {
		tokens[i] = string(a)
	}
	req := registry.BatchTransferRequest{
		SenderID:   string(o.ledger.ids.Custody),
		ReceiverID: string(caller),
		TokenIDs:   tokens,
	}

	callCtx := context.WithoutCancel(ctx)
	go func() {
		err := o.registry.BatchTransfer(callCtx, req)

		o.deliver(completion{id: id, finish: func(ctx context.Context) (RecordID, error) {
			if err != nil {
				o.ledger.releaseUnstake(plan)
				return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
			}
			return plan.record, o.ledger.commitUnstake(ctx, plan)
		}})
	}()

	return id, nil
}

// Fund moves amount from the treasury into the pool; only the funding authority may call
func (o *Orchestrator) Fund(ctx context.Context, caller AccountID, amount *uint256.Int) (RequestID, error) {
	if err := o.ledger.authorizeFunding(caller); err != nil {
		return RequestID{}, err
	}
	if amount == nil || amount.IsZero() {
		return RequestID{}, fmt.Errorf("%w: funding amount must be positive", ErrValidation)
	}
	if err := o.accepting(); err != nil {
		return RequestID{}, err
	}

	id := uuid.New()
	amount = new(uint256.Int).Set(amount)
	o.register(Request{ID: id, Kind: KindFund, Caller: caller, Amount: amount})

	ids := o.ledger.ids
	req := settlement.NewTransferRequest(string(ids.Treasury), string(ids.Pool), amount, "fund "+id.String())
	callCtx := context.WithoutCancel(ctx)
	go func() {
		err := o.settlement.Transfer(callCtx, req)

		o.deliver(completion{id: id, finish: func(ctx context.Context) (RecordID, error) {
			if err != nil {
				return 0, fmt.Errorf("%w: %w", ErrFundingTransferFailed, err)
			}
			return 0, o.ledger.commitFunding(ctx, id, caller, amount, o.clock.Now())
		}})
	}()

	return id, nil
}

// Request returns the current state of a request
func (o *Orchestrator) Request(id RequestID) (Request, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, ok := o.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return r.snapshot(), nil
}

// Await blocks until the request leaves the Requested state or ctx is done
func (o *Orchestrator) Await(ctx context.Context, id RequestID) (Request, error) {
	o.mu.Lock()
	r, ok := o.requests[id]
	o.mu.Unlock()
	if !ok {
		return Request{}, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return r.snapshot(), nil
}

// Outstanding counts requests still waiting for their completion
func (o *Orchestrator) Outstanding() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, r := range o.requests {
		if !r.Done() {
			n++
		}
	}
	return n
}
