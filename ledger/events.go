package ledger

import "time"

// Event represents an orchestrator lifecycle event
type Event any

type OrchestratorStarted struct {
	StartedAt time.Time
}

type RequestCommitted struct {
	Request Request
}

type RequestAborted struct {
	Request Request
}

type OrchestratorShutdown struct {
	Reason      error // Why shutdown occurred (ctx.Err())
	Outstanding int   // Requests whose completion never arrived
}
