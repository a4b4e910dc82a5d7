package ingester

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/pkg/registry"
)

// Sentinel errors for failure cases
var (
	ErrCheckpointRetrieval = errors.New("checkpoint retrieval failed")
	ErrCheckpointSave      = errors.New("checkpoint save failed")
	ErrAPIRequestFailed    = errors.New("API request failed")
	ErrIngestFailed        = errors.New("transfer ingestion failed")
)

// Default configuration values
const (
	DefaultChunkSize    = uint64(500)
	DefaultPollInterval = 10 * time.Second
)

// Client reads the custody transfer feed from the asset registry
// ---------------------------------------------------------------
type Client interface {
	GetTransfers(ctx context.Context, req registry.TransfersRequest) ([]registry.Transfer, error)
}

// Processor commits custody transfers as stakes
type Processor interface {
	ProcessBatchTransfer(ctx context.Context, events []ledger.TransferEvent) (bool, error)
}

// Store persists the feed checkpoint
type Store interface {
	// LastProcessedID returns the id of the last transfer handled
	LastProcessedID(ctx context.Context) (int64, error)
	// SaveCheckpoint records the id of the last transfer handled
	SaveCheckpoint(ctx context.Context, id int64) error
}

// SyncResult contains the results of a sync batch operation
type SyncResult struct {
	Fetched      int
	Staked       int
	Rejected     int
	CheckpointID int64
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Event represents a service lifecycle event
// ------------------------------------------
type Event any

type BackfillDone struct {
	TotalProcessed int64
	Duration       time.Duration
}

type BackfillStarted struct {
	StartedAt    time.Time
	CheckpointID int64
}

type BackfillSyncCompleted struct {
	SyncResult
	ChunkSize uint64
}

type BackfillError struct {
	Err error
}

type PollingSyncCompleted struct {
	SyncResult
	ChunkSize uint64
}

type PollingStarted struct {
	Interval time.Duration
}

type PollingShutdown struct {
	Reason error // Why shutdown occurred (ctx.Err())
}

type PollingError struct {
	Err error
}

// TransferStaked reports a transfer committed as one stake record
type TransferStaked struct {
	TransferID int64
	Owner      ledger.AccountID
	AssetIDs   []ledger.AssetID
}

// TransferRejected reports a transfer the ledger refused; the feed moves past it
type TransferRejected struct {
	TransferID int64
	Owner      ledger.AccountID
	AssetIDs   []ledger.AssetID
	Err        error
}

// rejected reports whether the ledger refused the transfer for good.
// Anything else is retried on the next sync.
func rejected(err error) bool {
	return errors.Is(err, ledger.ErrValidation) || errors.Is(err, ledger.ErrAlreadyStaked)
}

func toTransferEvent(t registry.Transfer) ledger.TransferEvent {
	assets := make([]ledger.AssetID, len(t.TokenIDs))
	for i, id := range t.TokenIDs {
		assets[i] = ledger.AssetID(id)
	}
	return ledger.TransferEvent{
		PreviousOwner: ledger.AccountID(t.SenderID),
		Destination:   ledger.AccountID(t.ReceiverID),
		AssetIDs:      assets,
	}
}
