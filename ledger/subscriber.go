package ledger

// Subscriber handles event subscriptions.
type Subscriber struct {
	done             chan struct{}
	startedHandler   func(OrchestratorStarted)
	committedHandler func(RequestCommitted)
	abortedHandler   func(RequestAborted)
	shutdownHandler  func(OrchestratorShutdown)
}

// OnStarted sets the handler for OrchestratorStarted events
func OnStarted(fn func(OrchestratorStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.startedHandler = fn }
}

// OnRequestCommitted sets the handler for RequestCommitted events
func OnRequestCommitted(fn func(RequestCommitted)) func(*Subscriber) {
	return func(s *Subscriber) { s.committedHandler = fn }
}

// OnRequestAborted sets the handler for RequestAborted events
func OnRequestAborted(fn func(RequestAborted)) func(*Subscriber) {
	return func(s *Subscriber) { s.abortedHandler = fn }
}

// OnShutdown sets the handler for OrchestratorShutdown events
func OnShutdown(fn func(OrchestratorShutdown)) func(*Subscriber) {
	return func(s *Subscriber) { s.shutdownHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
//	closer := ledger.NewSubscriber(events,
//	  ledger.OnRequestAborted(func(e ledger.RequestAborted) { ... }),
//	)
//	defer closer()
//
// The orchestrator loop blocks on a full events channel, so every started
// orchestrator needs a subscriber.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:             make(chan struct{}),
		startedHandler:   func(OrchestratorStarted) {},
		committedHandler: func(RequestCommitted) {},
		abortedHandler:   func(RequestAborted) {},
		shutdownHandler:  func(OrchestratorShutdown) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case OrchestratorStarted:
				s.startedHandler(e)
			case RequestCommitted:
				s.committedHandler(e)
			case RequestAborted:
				s.abortedHandler(e)
			case OrchestratorShutdown:
				s.shutdownHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
