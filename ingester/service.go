package ingester

import (
	"context"
	"fmt"
	"time"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/pkg/clock"
	"github.com/screwyprof/hivestake/pkg/registry"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPollInterval sets the polling interval
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithChunkSize sets the number of transfers fetched per batch
func WithChunkSize(n uint64) Option {
	return func(s *Service) { s.chunkSize = n }
}

// Service implements two-phase feed ingestion: backfill then live polling
// -----------------------------------------------------------------------
type Service struct {
	api          Client
	ledger       Processor
	store        Store
	custody      ledger.AccountID
	clock        Clock
	pollInterval time.Duration
	chunkSize    uint64
	events       chan Event
}

// NewService constructs a Service reading transfers into custody.
// By default, it uses a real clock, 10s poll interval, and 500 chunk size.
func NewService(api Client, processor Processor, store Store, custody ledger.AccountID, opts ...Option) *Service {
	s := &Service{
		api:          api,
		ledger:       processor,
		store:        store,
		custody:      custody,
		clock:        clock.SystemClock{},
		pollInterval: DefaultPollInterval,
		chunkSize:    DefaultChunkSize,
		events:       make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the ingester and returns the events channel and done channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. Service stops producing events and closes events channel
//  3. Wait for complete shutdown: <-done
//
// The context signals when to stop, the done channel confirms when stopped.
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run orchestrates the backfill and polling, respecting context cancellation
// -------------------------------------------------------------------------
func (s *Service) run(ctx context.Context) {
	// Backfill
	start := s.clock.Now()

	startingCheckpointID, err := s.store.LastProcessedID(ctx)
	if err != nil {
		s.events <- BackfillError{Err: fmt.Errorf("%w: %w", ErrCheckpointRetrieval, err)}
		return
	}

	s.events <- BackfillStarted{
		StartedAt:    start,
		CheckpointID: startingCheckpointID,
	}

	var total int64
	for {
		result, err := s.syncBatch(ctx, s.chunkSize)
		if err != nil {
			s.events <- BackfillError{Err: err}
			return
		}
		if result.Fetched == 0 {
			break
		}
		total += int64(result.Fetched)

		s.events <- BackfillSyncCompleted{SyncResult: result, ChunkSize: s.chunkSize}
	}

	s.events <- BackfillDone{
		TotalProcessed: total,
		Duration:       s.clock.Now().Sub(start),
	}

	// Polling
	s.events <- PollingStarted{Interval: s.pollInterval}
	for {
		select {
		case <-ctx.Done():
			s.events <- PollingShutdown{Reason: ctx.Err()}
			return
		case <-s.clock.After(s.pollInterval):
			result, err := s.syncBatch(ctx, s.chunkSize)
			if err != nil {
				s.events <- PollingError{Err: err}
				continue
			}

			s.events <- PollingSyncCompleted{SyncResult: result, ChunkSize: s.chunkSize}
		}
	}
}

// syncBatch fetches the next transfers after the checkpoint and stakes them one by one.
// Rejected transfers are skipped; any other failure stops the batch after
// checkpointing the transfers handled so far.
func (s *Service) syncBatch(ctx context.Context, chunkSize uint64) (SyncResult, error) {
	// respect cancellation
	select {
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	default:
	}

	checkpointID, err := s.store.LastProcessedID(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %w", ErrCheckpointRetrieval, err)
	}

	batch, err := s.api.GetTransfers(ctx, registry.TransfersRequest{
		Receiver:      string(s.custody),
		Limit:         chunkSize,
		IDGreaterThan: &checkpointID,
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %w", ErrAPIRequestFailed, err)
	}

	result := SyncResult{Fetched: len(batch), CheckpointID: checkpointID}
	if len(batch) == 0 {
		return result, nil
	}

	for _, t := range batch {
		ev := toTransferEvent(t)
		_, err := s.ledger.ProcessBatchTransfer(ctx, []ledger.TransferEvent{ev})
		switch {
		case err == nil:
			result.Staked++
			s.events <- TransferStaked{TransferID: t.ID, Owner: ev.PreviousOwner, AssetIDs: ev.AssetIDs}
		case rejected(err):
			result.Rejected++
			s.events <- TransferRejected{TransferID: t.ID, Owner: ev.PreviousOwner, AssetIDs: ev.AssetIDs, Err: err}
		default:
			if err := s.checkpoint(ctx, checkpointID, result.CheckpointID); err != nil {
				return result, err
			}
			return result, fmt.Errorf("%w: transfer %d: %w", ErrIngestFailed, t.ID, err)
		}
		result.CheckpointID = t.ID
	}

	return result, s.checkpoint(ctx, checkpointID, result.CheckpointID)
}

// checkpoint saves next when it moved past prev
func (s *Service) checkpoint(ctx context.Context, prev, next int64) error {
	if next == prev {
		return nil
	}
	if err := s.store.SaveCheckpoint(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointSave, err)
	}
	return nil
}
