package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/migrator"
	"github.com/screwyprof/hivestake/migrator/config"
	"github.com/screwyprof/hivestake/pkg/logger"
	"github.com/screwyprof/hivestake/pkg/pgxdb"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

func main() {
	cfg := config.New()

	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	log.Info("Hivestake migrator starting",
		slog.String("migrationsDir", cfg.MigrationsDir),
		slog.Bool("seedDemo", cfg.SeedDemo()),
		slog.String("version", version),
		slog.String("date", date),
	)

	// Cancel on SIGINT/SIGTERM or when the operation timeout elapses
	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(baseCtx, cfg.OperationTimeout)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Migrator failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("Migrator completed successfully")
}

// run migrates the schema, then prepares the singleton rows the ledger restores from
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := migrator.ApplyMigrations(db, cfg.MigrationsDir); err != nil {
		return err
	}
	log.Info("Schema is up to date")

	if cfg.InitialCheckpoint > 0 {
		if err := migrator.InitializeCheckpoint(ctx, db, cfg.InitialCheckpoint); err != nil {
			return err
		}
		log.Info("Feed checkpoint initialized", slog.Uint64("checkpoint", cfg.InitialCheckpoint))
	}

	// Seeding stores the demo owner as authority, so it runs before the configured one
	if cfg.SeedDemo() {
		if err := migrator.SeedDemoData(ctx, db, cfg.SeedAccounts, cfg.SeedFundings); err != nil {
			return err
		}
	}

	if cfg.FundingAuthority != "" {
		if err := migrator.InitializeFundingAuthority(ctx, db, ledger.AccountID(cfg.FundingAuthority)); err != nil {
			return err
		}
		log.Info("Funding authority initialized", slog.String("authority", cfg.FundingAuthority))
	}

	return nil
}
