package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// RequestID correlates an issued external call with its completion
type RequestID = uuid.UUID

// RequestKind names the operation behind a request
type RequestKind string

const (
	KindStake   RequestKind = "stake"
	KindClaim   RequestKind = "claim"
	KindUnstake RequestKind = "unstake"
	KindFund    RequestKind = "fund"
)

// RequestState is the position of a request in its lifecycle
type RequestState string

const (
	StateRequested RequestState = "requested"
	StateCommitted RequestState = "committed"
	StateAborted   RequestState = "aborted"
)

// Request is the read model of one two-phase request
type Request struct {
	ID       RequestID
	Kind     RequestKind
	Caller   AccountID
	State    RequestState
	IssuedAt time.Time
	// DoneAt is zero while the request is outstanding
	DoneAt time.Time
	// Amount is set for claims and fundings
	Amount *uint256.Int
	// AssetIDs lists the assets a stake or unstake moves
	AssetIDs []AssetID
	// RecordID is set once a stake commits and for unstakes
	RecordID RecordID
	Err      error
}

// Done reports whether the request left the Requested state
func (r Request) Done() bool {
	return r.State != StateRequested
}

type request struct {
	Request
	done chan struct{}
}

func (r *request) snapshot() Request {
	out := r.Request
	if r.Amount != nil {
		out.Amount = new(uint256.Int).Set(r.Amount)
	}
	out.AssetIDs = append([]AssetID(nil), r.AssetIDs...)
	return out
}
