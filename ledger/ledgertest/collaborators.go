package ledgertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/screwyprof/hivestake/pkg/registry"
	"github.com/screwyprof/hivestake/pkg/settlement"
)

// gate lets tests hold external calls until released
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

// Hold makes subsequent calls block until Release
func (g *gate) Hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ch = make(chan struct{})
}

// Release unblocks held calls
func (g *gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch != nil {
		close(g.ch)
		g.ch = nil
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry is an in-memory asset registry
type Registry struct {
	gate

	mu          sync.Mutex
	tokens      map[string]registry.Token
	tokenErr    error
	transferErr error
	transfers   []registry.BatchTransferRequest
	lookups     int
}

// NewRegistry creates a registry serving tokens
func NewRegistry(tokens ...registry.Token) *Registry {
	r := &Registry{tokens: make(map[string]registry.Token)}
	for _, t := range tokens {
		r.tokens[t.TokenID] = t
	}
	return r
}

// Put adds or replaces a token
func (r *Registry) Put(t registry.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.TokenID] = t
}

// FailLookups makes Token and Metadata return err
func (r *Registry) FailLookups(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenErr = err
}

// FailTransfers makes BatchTransfer return err
func (r *Registry) FailTransfers(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferErr = err
}

// Transfers returns the accepted batch transfers
func (r *Registry) Transfers() []registry.BatchTransferRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.transfers)
}

// Lookups counts Token and Metadata calls
func (r *Registry) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

func (r *Registry) Token(ctx context.Context, tokenID string) (registry.Token, error) {
	if err := r.wait(ctx); err != nil {
		return registry.Token{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookups++
	if r.tokenErr != nil {
		return registry.Token{}, r.tokenErr
	}
	t, ok := r.tokens[tokenID]
	if !ok {
		return registry.Token{}, fmt.Errorf("%w: %s", registry.ErrTokenNotFound, tokenID)
	}
	return t, nil
}

func (r *Registry) Metadata(ctx context.Context, tokenID string) (registry.Metadata, error) {
	t, err := r.Token(ctx, tokenID)
	if err != nil {
		return registry.Metadata{}, err
	}
	return t.Metadata, nil
}

func (r *Registry) BatchTransfer(ctx context.Context, req registry.BatchTransferRequest) error {
	if err := r.wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.transferErr != nil {
		return r.transferErr
	}
	for _, id := range req.TokenIDs {
		t := r.tokens[id]
		t.OwnerID = req.ReceiverID
		t.DepositorID = ""
		r.tokens[id] = t
	}
	r.transfers = append(r.transfers, req)
	return nil
}

// Settlement is an in-memory settlement ledger recording transfers
type Settlement struct {
	gate

	mu        sync.Mutex
	err       error
	transfers []settlement.TransferRequest
}

// NewSettlement creates a settlement ledger accepting every transfer
func NewSettlement() *Settlement {
	return &Settlement{}
}

// FailWith makes Transfer return err; nil restores success
func (s *Settlement) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Transfers returns the accepted transfers
func (s *Settlement) Transfers() []settlement.TransferRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transfers)
}

func (s *Settlement) Transfer(ctx context.Context, req settlement.TransferRequest) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.transfers = append(s.transfers, req)
	return nil
}
