package ledger

import "time"

// DefaultLockupPeriod is applied to every new stake record
const DefaultLockupPeriod = 30 * 24 * time.Hour

// IsEligible reports whether the record's lockup has elapsed at now.
// The boundary is inclusive.
func IsEligible(r StakeRecord, now time.Time) bool {
	return !now.Before(r.EligibleAt())
}
