package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/screwyprof/hivestake/pkg/registry"
)

// TokenSource looks up the current registry view of an asset.
// Ownership changes, so implementations must not serve it from a cache.
type TokenSource interface {
	Token(ctx context.Context, tokenID string) (registry.Token, error)
}

// TransferEvent reports assets observed moving into custody
type TransferEvent struct {
	PreviousOwner AccountID
	Destination   AccountID
	AssetIDs      []AssetID
}

// IngestOption configures a BatchIngestor
type IngestOption func(*BatchIngestor)

// WithIngestAuthority names the only account allowed to Submit batches
func WithIngestAuthority(id AccountID) IngestOption {
	return func(b *BatchIngestor) { b.authority = id }
}

// BatchIngestor stakes assets from observed transfers without a verification round trip
type BatchIngestor struct {
	ledger    *Ledger
	tokens    TokenSource
	authority AccountID
}

// NewBatchIngestor creates an ingestor committing into l
func NewBatchIngestor(l *Ledger, tokens TokenSource, opts ...IngestOption) *BatchIngestor {
	b := &BatchIngestor{ledger: l, tokens: tokens}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit processes a batch reported by caller. Without a configured ingest
// authority every caller is refused.
func (b *BatchIngestor) Submit(ctx context.Context, caller AccountID, events []TransferEvent) (bool, error) {
	if b.authority == "" || caller != b.authority {
		return false, fmt.Errorf("%w: %s may not submit custody transfers", ErrAuthorization, caller)
	}
	return b.ProcessBatchTransfer(ctx, events)
}

// ProcessBatchTransfer stakes every event of the batch or none of them.
// Each event becomes one record attributed to its previous owner.
func (b *BatchIngestor) ProcessBatchTransfer(ctx context.Context, events []TransferEvent) (bool, error) {
	if err := b.validate(events); err != nil {
		return false, err
	}

	drafts := make([]StakeDraft, len(events))
	now := b.ledger.now()
	for i, ev := range events {
		assets := make([]StakedAsset, len(ev.AssetIDs))
		for j, id := range ev.AssetIDs {
			token, err := b.tokens.Token(ctx, string(id))
			if err != nil {
				return false, fmt.Errorf("%w: lookup of %s: %w", ErrVerificationFailed, id, err)
			}
			if err := b.checkCustody(token, ev.PreviousOwner); err != nil {
				return false, err
			}
			assets[j] = StakedAsset{ID: id, Class: Classify(token.Metadata)}
		}
		drafts[i] = StakeDraft{Owner: ev.PreviousOwner, Assets: assets, StakedAt: now}
	}

	records, err := b.ledger.commitStakes(ctx, drafts)
	if err != nil {
		return false, err
	}

	b.ledger.logger.InfoContext(ctx, "Batch transfer ingested",
		slog.Int("events", len(events)),
		slog.Int("records", len(records)),
	)

	return true, nil
}

// checkCustody requires the registry to show the asset held by custody and,
// when it names a depositor, deposited by the reported previous owner.
func (b *BatchIngestor) checkCustody(token registry.Token, previousOwner AccountID) error {
	custody := b.ledger.ids.Custody
	if AccountID(token.OwnerID) != custody {
		return fmt.Errorf("%w: asset %s is held by %s, not %s", ErrVerificationFailed, token.TokenID, token.OwnerID, custody)
	}
	if token.DepositorID != "" && AccountID(token.DepositorID) != previousOwner {
		return fmt.Errorf("%w: asset %s was deposited by %s, not %s", ErrAuthorization, token.TokenID, token.DepositorID, previousOwner)
	}
	return nil
}

func (b *BatchIngestor) validate(events []TransferEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: empty batch", ErrValidation)
	}

	custody := b.ledger.ids.Custody
	seen := make(map[AssetID]struct{})
	var all []AssetID

	for i, ev := range events {
		switch {
		case ev.PreviousOwner == "":
			return fmt.Errorf("%w: event %d has no previous owner", ErrValidation, i)
		case len(ev.AssetIDs) == 0:
			return fmt.Errorf("%w: event %d has no assets", ErrValidation, i)
		case ev.Destination != custody:
			return fmt.Errorf("%w: event %d is addressed to %s, not %s", ErrValidation, i, ev.Destination, custody)
		}

		for _, id := range ev.AssetIDs {
			if id == "" {
				return fmt.Errorf("%w: event %d has an empty asset id", ErrValidation, i)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: asset %s appears twice in the batch", ErrValidation, id)
			}
			seen[id] = struct{}{}
			all = append(all, id)
		}
	}

	b.ledger.mu.RLock()
	defer b.ledger.mu.RUnlock()
	return b.ledger.unindexed(all)
}
