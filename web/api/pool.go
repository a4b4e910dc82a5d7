package api

// FundRequest is the body of POST /pool/fundings; amount is a decimal string
type FundRequest struct {
	Amount string `json:"amount"`
}

// AuthorityRequest is the body of PUT /pool/authority
type AuthorityRequest struct {
	Account string `json:"account"`
}

// Authority names the account holding the funding role
type Authority struct {
	Account string `json:"account"`
}

// Pool is the response of GET /pool
type Pool struct {
	Balance                   string  `json:"balance"`
	Reserved                  string  `json:"reserved"`
	Available                 string  `json:"available"`
	TotalStakedPoints         uint64  `json:"total_staked_points"`
	LastDistribution          *string `json:"last_distribution"`
	NextDistribution          string  `json:"next_distribution"`
	DaysUntilNextDistribution uint64  `json:"days_until_next_distribution"`
	FundingAuthority          string  `json:"funding_authority"`
}

// FundingsRequest represents the query parameters for GET /pool/fundings
type FundingsRequest struct {
	Year    uint64 `query:"year"`
	Page    uint64 `query:"page"`
	PerPage uint64 `query:"per_page"`
}

// Funding is one entry of the funding history
type Funding struct {
	RequestID string `json:"request_id"`
	Funder    string `json:"funder"`
	Amount    string `json:"amount"`
	FundedAt  string `json:"funded_at"`
}

// FundingsResponse is one page of the funding history
type FundingsResponse struct {
	Data []Funding `json:"data"`
}

// Distribution is what one account could claim right now
type Distribution struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Records int    `json:"records"`
}

// DistributionResponse is the response of GET /pool/distribution
type DistributionResponse struct {
	Data []Distribution `json:"data"`
}
