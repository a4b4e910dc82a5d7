package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/pkg/logger"
)

// authorizeFunding checks caller holds the funding role
func (l *Ledger) authorizeFunding(caller AccountID) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if caller != l.authority {
		return fmt.Errorf("%w: %s is not the funding authority", ErrAuthorization, caller)
	}
	return nil
}

// commitFunding credits the pool after the treasury transfer confirmed
func (l *Ledger) commitFunding(ctx context.Context, id RequestID, caller AccountID, amount *uint256.Int, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.authority {
		return fmt.Errorf("%w: %s lost the funding authority", ErrAuthorization, caller)
	}

	balance, overflow := new(uint256.Int).AddOverflow(l.pool.Balance, amount)
	if overflow {
		return fmt.Errorf("%w: pool balance overflows", ErrValidation)
	}

	rec := FundingRecord{
		RequestID: id,
		Funder:    caller,
		Amount:    new(uint256.Int).Set(amount),
		FundedAt:  now,
	}
	if err := l.store.SaveFunding(ctx, FundingCommit{Record: rec, PoolBalance: balance}); err != nil {
		l.logger.ErrorContext(ctx, "Pool funded but not persisted",
			slog.String("request", id.String()),
			logger.Amount("amount", amount),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	l.pool.Balance = balance

	l.logger.InfoContext(ctx, "Pool funded",
		slog.String("funder", string(caller)),
		logger.Amount("amount", amount),
		logger.Amount("balance", balance),
	)

	return nil
}

// SetFundingAuthority hands the funding role from the current authority to next
func (l *Ledger) SetFundingAuthority(ctx context.Context, caller, next AccountID) error {
	if next == "" {
		return fmt.Errorf("%w: funding authority must not be empty", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.authority {
		return fmt.Errorf("%w: %s is not the funding authority", ErrAuthorization, caller)
	}

	if err := l.store.SaveFundingAuthority(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	l.authority = next

	l.logger.InfoContext(ctx, "Funding authority handed over",
		slog.String("from", string(caller)),
		slog.String("to", string(next)),
	)

	return nil
}
