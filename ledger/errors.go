package ledger

import "errors"

// Sentinel errors returned by ledger operations and recorded on aborted requests
var (
	ErrValidation            = errors.New("validation error")
	ErrAuthorization         = errors.New("authorization error")
	ErrAlreadyStaked         = errors.New("asset already staked")
	ErrLockupNotComplete     = errors.New("lockup period not complete")
	ErrVerificationFailed    = errors.New("asset verification failed")
	ErrFundingTransferFailed = errors.New("funding transfer failed")
	ErrTransferFailed        = errors.New("outbound transfer failed")
	ErrNoRewardsAvailable    = errors.New("no rewards available")
	ErrStakerNotFound        = errors.New("staker not found")
	ErrNotFound              = errors.New("not found")
	ErrPersistFailed         = errors.New("persisting ledger state failed")
	ErrShuttingDown          = errors.New("orchestrator is shutting down")
)
