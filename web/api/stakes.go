package api

// StakeRequest is the body of POST /stakes
type StakeRequest struct {
	AssetID string `json:"asset_id"`
}

// TransferEvent reports assets that moved into custody
type TransferEvent struct {
	PreviousOwner string   `json:"previous_owner"`
	Destination   string   `json:"destination"`
	AssetIDs      []string `json:"asset_ids"`
}

// BatchStakeRequest is the body of POST /stakes/batch
type BatchStakeRequest struct {
	Events []TransferEvent `json:"events"`
}

// BatchStakeResponse reports that every event of the batch was staked
type BatchStakeResponse struct {
	OK bool `json:"ok"`
}

// UnstakeRequest is the body of POST /unstakes; exactly one field is set
type UnstakeRequest struct {
	RecordID uint64 `json:"record_id,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
}

// RequestAccepted is returned for every issued two-phase request
type RequestAccepted struct {
	RequestID string `json:"request_id"`
}

// ClaimAccepted carries the reserved payout along with the request id
type ClaimAccepted struct {
	RequestID string `json:"request_id"`
	Amount    string `json:"amount"`
}

// Stake is one record in GET /accounts/{account}/stakes
type Stake struct {
	RecordID       uint64   `json:"record_id"`
	AssetIDs       []string `json:"asset_ids"`
	Queens         int      `json:"queen"`
	Workers        int      `json:"worker"`
	Drones         int      `json:"drone"`
	Weight         uint64   `json:"weight"`
	StakedAt       string   `json:"start_time"`
	LockupSeconds  int64    `json:"lockup_period"`
	EligibleAt     string   `json:"eligible_at"`
	Claimed        bool     `json:"claimed"`
	ClaimedRewards string   `json:"claimed_rewards"`
	Pending        bool     `json:"pending"`
}

// StakesResponse lists an account's records in staking order
type StakesResponse struct {
	Data []Stake `json:"data"`
}

// Account is the response of GET /accounts/{account}
type Account struct {
	Account      string `json:"account"`
	Records      int    `json:"records"`
	Weight       uint64 `json:"weight"`
	TotalClaimed string `json:"total_claimed"`
}

// Request is the response of GET /requests/{id}
type Request struct {
	ID       string   `json:"request_id"`
	Kind     string   `json:"kind"`
	Caller   string   `json:"caller"`
	State    string   `json:"state"`
	IssuedAt string   `json:"issued_at"`
	DoneAt   string   `json:"done_at,omitempty"`
	Amount   string   `json:"amount,omitempty"`
	AssetIDs []string `json:"asset_ids,omitempty"`
	RecordID uint64   `json:"record_id,omitempty"`
	Error    string   `json:"error,omitempty"`
}
