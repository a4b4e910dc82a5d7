// Package funding is the read model behind the paginated funding history.
package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/screwyprof/hivestake/ledger"
)

// Sentinel errors for criteria construction
var (
	ErrInvalidYear    = errors.New("invalid year")
	ErrInvalidPerPage = errors.New("invalid per_page")
)

// Finder queries the funding history, most recent first
type Finder interface {
	FindFundings(ctx context.Context, criteria Criteria) (*RecordsPage, error)
}

// Criteria selects one page of the funding history
type Criteria struct {
	Year Year // 0 means every year
	Page Page
	Size PerPage
}

// ItemsPerPage returns the number of records requested per page
func (c Criteria) ItemsPerPage() uint64 {
	return c.Size.Uint64()
}

// ItemsToSkip returns the number of records before the requested page
func (c Criteria) ItemsToSkip() uint64 {
	return (c.Page.Uint64() - 1) * c.Size.Uint64()
}

// NewCriteria validates raw query values; zero values pick the defaults
func NewCriteria(year, page, perPage uint64, now time.Time) (Criteria, error) {
	y, err := ParseYear(year, now)
	if err != nil {
		return Criteria{}, fmt.Errorf("%w: %w", ErrInvalidYear, err)
	}

	pp, err := ParsePerPage(perPage)
	if err != nil {
		return Criteria{}, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
	}

	return Criteria{
		Year: y,
		Page: ParsePage(page),
		Size: pp,
	}, nil
}

// RecordsPage is one page of funding records with navigation metadata
type RecordsPage struct {
	Records []ledger.FundingRecord
	HasMore bool // more records exist after this page
	Number  Page
	Size    PerPage
}

func (p *RecordsPage) HasNext() bool     { return p.HasMore }
func (p *RecordsPage) HasPrevious() bool { return p.Number > 1 }
