package funding

import (
	"errors"
	"fmt"
)

// Default pagination values
const (
	DefaultPage    = 1
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// Page is a 1-based page number
type Page uint64

// PerPage is the number of records per page
type PerPage uint64

// Pagination validation errors
var (
	ErrPerPageTooLarge = errors.New("per_page exceeds maximum limit")
)

// ParsePage turns zero into the first page
func ParsePage(page uint64) Page {
	if page == 0 {
		return Page(DefaultPage)
	}
	return Page(page)
}

// ParsePerPage turns zero into the default size and rejects sizes above MaxPerPage
func ParsePerPage(perPage uint64) (PerPage, error) {
	if perPage == 0 {
		return PerPage(DefaultPerPage), nil
	}

	if perPage > MaxPerPage {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrPerPageTooLarge, MaxPerPage)
	}

	return PerPage(perPage), nil
}

// Uint64 returns the underlying value
func (p Page) Uint64() uint64 {
	return uint64(p)
}

// Uint64 returns the underlying value
func (pp PerPage) Uint64() uint64 {
	return uint64(pp)
}
