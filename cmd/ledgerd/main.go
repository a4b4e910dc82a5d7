package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/screwyprof/hivestake/cmd/ledgerd/config"
	"github.com/screwyprof/hivestake/ingester"
	ingesterstore "github.com/screwyprof/hivestake/ingester/store/pgxstore"
	"github.com/screwyprof/hivestake/ledger"
	ledgerstore "github.com/screwyprof/hivestake/ledger/store/pgxstore"
	"github.com/screwyprof/hivestake/pkg/clock"
	"github.com/screwyprof/hivestake/pkg/logger"
	"github.com/screwyprof/hivestake/pkg/metrics"
	"github.com/screwyprof/hivestake/pkg/pgxdb"
	"github.com/screwyprof/hivestake/pkg/registry"
	"github.com/screwyprof/hivestake/pkg/settlement"
	"github.com/screwyprof/hivestake/web/handler"
	webstore "github.com/screwyprof/hivestake/web/store/pgxstore"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.New()

	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "Hivestake ledger starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "Ledger stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	log.InfoContext(ctx, "Ledger exited gracefully")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	// Collaborators
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	registryClient, err := registry.NewCachingClient(registry.NewClient(httpClient, cfg.RegistryURL), cfg.MetadataCacheSize)
	if err != nil {
		return err
	}
	settlementClient := settlement.NewClient(httpClient, cfg.SettlementURL)

	// Ledger restored from the database
	store, _ := ledgerstore.New(db)
	l := ledger.New(cfg.Accounts(), store,
		ledger.WithClock(clock.SystemClock{}),
		ledger.WithLogger(log.With(slog.String("module", "ledger"))),
		ledger.WithWeights(cfg.Weights()),
		ledger.WithLockupPeriod(cfg.LockupPeriod),
		ledger.WithDistributionInterval(cfg.DistributionInterval),
	)
	if err := l.Restore(ctx); err != nil {
		return err
	}

	orch := ledger.NewOrchestrator(l, registryClient, settlementClient,
		ledger.WithVerificationBudget(cfg.VerificationBudget),
		ledger.WithRequestRetention(cfg.RequestRetention),
	)
	ingestor := ledger.NewBatchIngestor(l, registryClient,
		ledger.WithIngestAuthority(ledger.AccountID(cfg.IngestAuthority)),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewLedgerMetrics("hivestake", reg)
	m.ObserveOutstanding(orch.Outstanding)
	observePool(m, l)

	// HTTP API
	finder, _ := webstore.New(db)
	mux := handler.NewServeMux(
		handler.NewStakes(orch, ingestor, l),
		handler.NewPool(orch, l, finder, clock.SystemClock{}),
		handler.NewRequests(orch),
	)
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
		Handler:           logger.NewMiddleware(log)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serve(gctx, server, log)
	})

	g.Go(func() error {
		return metrics.NewPullService(cfg.MetricsAddr, reg, log).Run(gctx)
	})

	g.Go(func() error {
		events, done := orch.Start(gctx)
		closer := subscribeOrchestrator(gctx, events, l, m, log)
		<-done
		closer()
		return nil
	})

	if cfg.FeedEnabled {
		g.Go(func() error {
			checkpoints, _ := ingesterstore.New(db)
			feed := ingester.NewService(registryClient, ingestor, checkpoints, l.Accounts().Custody,
				ingester.WithChunkSize(cfg.FeedChunkSize),
				ingester.WithPollInterval(cfg.FeedPollInterval),
			)
			events, done := feed.Start(gctx)
			closer := subscribeFeed(gctx, events, l, m, log)
			<-done
			closer()
			return nil
		})
	}

	return g.Wait()
}

// serve runs the API until ctx is done, then gives in-flight requests time to finish
func serve(ctx context.Context, server *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "Server started", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.InfoContext(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

func observePool(m *metrics.LedgerMetrics, l *ledger.Ledger) {
	pool := l.Pool()
	m.SetStakedPoints(pool.TotalWeight)
	m.SetPool(pool.Balance, pool.Reserved)
}

// subscribeOrchestrator logs request outcomes and keeps the metrics current
func subscribeOrchestrator(ctx context.Context, events <-chan ledger.Event, l *ledger.Ledger, m *metrics.LedgerMetrics, log *slog.Logger) func() {
	finished := func(r ledger.Request, outcome string) {
		m.RequestFinished(string(r.Kind), outcome, r.DoneAt.Sub(r.IssuedAt))
		observePool(m, l)
	}

	return ledger.NewSubscriber(events,
		ledger.OnStarted(func(event ledger.OrchestratorStarted) {
			log.InfoContext(ctx, "Orchestrator started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
			)
		}),
		ledger.OnRequestCommitted(func(event ledger.RequestCommitted) {
			finished(event.Request, metrics.OutcomeCommitted)
		}),
		ledger.OnRequestAborted(func(event ledger.RequestAborted) {
			finished(event.Request, metrics.OutcomeAborted)
		}),
		ledger.OnShutdown(func(event ledger.OrchestratorShutdown) {
			log.InfoContext(ctx, "Orchestrator stopped",
				slog.String("reason", event.Reason.Error()),
				slog.Int("outstanding", event.Outstanding),
			)
		}),
	)
}

// subscribeFeed logs feed progress and counts transfers by outcome
func subscribeFeed(ctx context.Context, events <-chan ingester.Event, l *ledger.Ledger, m *metrics.LedgerMetrics, log *slog.Logger) func() {
	return ingester.NewSubscriber(events,
		ingester.OnBackfillStarted(func(event ingester.BackfillStarted) {
			log.InfoContext(ctx, "Backfill started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Int64("checkpointID", event.CheckpointID),
			)
		}),
		ingester.OnBackfillSyncCompleted(func(event ingester.BackfillSyncCompleted) {
			log.InfoContext(ctx, "Backfill batch completed",
				slog.Int("fetched", event.Fetched),
				slog.Int("staked", event.Staked),
				slog.Int("rejected", event.Rejected),
				slog.Int64("checkpointID", event.CheckpointID),
			)
		}),
		ingester.OnBackfillDone(func(event ingester.BackfillDone) {
			log.InfoContext(ctx, "Backfill completed",
				slog.Int64("totalProcessed", event.TotalProcessed),
				slog.Duration("duration", event.Duration),
			)
		}),
		ingester.OnBackfillError(func(event ingester.BackfillError) {
			log.ErrorContext(ctx, "Backfill failed", slog.Any("error", event.Err))
		}),
		ingester.OnPollingStarted(func(event ingester.PollingStarted) {
			log.InfoContext(ctx, "Polling started", slog.Duration("interval", event.Interval))
		}),
		ingester.OnPollingSyncCompleted(func(event ingester.PollingSyncCompleted) {
			if event.Fetched == 0 {
				return
			}
			log.InfoContext(ctx, "Polling cycle completed",
				slog.Int("fetched", event.Fetched),
				slog.Int("staked", event.Staked),
				slog.Int("rejected", event.Rejected),
				slog.Int64("checkpointID", event.CheckpointID),
			)
		}),
		ingester.OnPollingShutdown(func(event ingester.PollingShutdown) {
			log.InfoContext(ctx, "Polling stopped", slog.String("reason", event.Reason.Error()))
		}),
		ingester.OnPollingError(func(event ingester.PollingError) {
			log.ErrorContext(ctx, "Polling failed", slog.Any("error", event.Err))
		}),
		ingester.OnTransferStaked(func(event ingester.TransferStaked) {
			m.FeedTransfer(metrics.FeedStaked)
			observePool(m, l)
		}),
		ingester.OnTransferRejected(func(event ingester.TransferRejected) {
			m.FeedTransfer(metrics.FeedRejected)
			log.WarnContext(ctx, "Transfer rejected",
				slog.Int64("transferID", event.TransferID),
				slog.String("owner", string(event.Owner)),
				slog.Any("error", event.Err),
			)
		}),
	)
}
