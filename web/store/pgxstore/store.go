package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/ledger/store/dbrow"
	"github.com/screwyprof/hivestake/web/funding"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed = errors.New("funding history query failed")
)

// FundingsFinder reads the funding history with pgx
type FundingsFinder struct {
	pool *pgxpool.Pool
}

// New creates a finder over an existing connection pool.
// Returns the finder and a closer function
func New(pool *pgxpool.Pool) (*FundingsFinder, func()) {
	finder := &FundingsFinder{pool: pool}
	closer := func() {
		pool.Close()
	}
	return finder, closer
}

// FindFundings returns one page of the funding history, most recent first.
// Uses LIMIT n+1 to detect further pages without a count query.
func (f *FundingsFinder) FindFundings(ctx context.Context, criteria funding.Criteria) (*funding.RecordsPage, error) {
	query, args := NewFundingsQuery().ForCriteria(criteria).Build()

	rows, err := f.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.FundingRecord])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	size := int(criteria.ItemsPerPage())
	hasMore := len(dbRows) > size
	if hasMore {
		dbRows = dbRows[:size]
	}

	records := make([]ledger.FundingRecord, len(dbRows))
	for i, row := range dbRows {
		records[i], err = row.ToFundingRecord()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
	}

	return &funding.RecordsPage{
		Records: records,
		HasMore: hasMore,
		Number:  criteria.Page,
		Size:    criteria.Size,
	}, nil
}
