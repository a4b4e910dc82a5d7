package funding

import (
	"errors"
	"time"
)

// Year bounds for the funding history filter
const (
	MinValidYear            = 2020
	MaxAllowedYearsInFuture = 1
)

// Year filters funding records by the calendar year they settled in (UTC)
type Year uint64

var ErrYearOutOfRange = errors.New("year out of valid range")

// ParseYear validates a year filter; zero disables filtering
func ParseYear(year uint64, now time.Time) (Year, error) {
	if year == 0 {
		return Year(0), nil
	}

	maxValidYear := uint64(now.Year()) + MaxAllowedYearsInFuture
	if year < MinValidYear || year > maxValidYear {
		return 0, ErrYearOutOfRange
	}

	return Year(year), nil
}

// Uint64 returns the underlying value
func (y Year) Uint64() uint64 {
	return uint64(y)
}

// Bounds returns the half-open UTC interval covered by the year
func (y Year) Bounds() (from, to time.Time) {
	from = time.Date(int(y), time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}
