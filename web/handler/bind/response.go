package bind

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/web/api"
)

// RequestAccepted binds an issued request id
func RequestAccepted(id ledger.RequestID) api.RequestAccepted {
	return api.RequestAccepted{RequestID: id.String()}
}

// ClaimAccepted binds a claim receipt
func ClaimAccepted(receipt ledger.ClaimReceipt) api.ClaimAccepted {
	return api.ClaimAccepted{
		RequestID: receipt.RequestID.String(),
		Amount:    receipt.Amount.Dec(),
	}
}

// StakesResponse binds an account's stake records
func StakesResponse(views []ledger.StakeView) api.StakesResponse {
	stakes := make([]api.Stake, len(views))
	for i, v := range views {
		stakes[i] = api.Stake{
			RecordID:       uint64(v.RecordID),
			AssetIDs:       assetIDs(v.AssetIDs),
			Queens:         v.Queens,
			Workers:        v.Workers,
			Drones:         v.Drones,
			Weight:         v.Weight,
			StakedAt:       timestamp(v.StakedAt),
			LockupSeconds:  int64(v.LockupPeriod / time.Second),
			EligibleAt:     timestamp(v.EligibleAt),
			Claimed:        v.Claimed,
			ClaimedRewards: v.ClaimedRewards.Dec(),
			Pending:        v.Pending,
		}
	}
	return api.StakesResponse{Data: stakes}
}

// AccountResponse binds an account summary
func AccountResponse(s ledger.AccountSummary) api.Account {
	return api.Account{
		Account:      string(s.Account),
		Records:      s.Records,
		Weight:       s.Weight,
		TotalClaimed: s.TotalClaimed.Dec(),
	}
}

// PoolView is everything GET /pool reports, read from the ledger at one instant
type PoolView struct {
	State     ledger.PoolState
	Next      time.Time
	DaysLeft  uint64
	Authority ledger.AccountID
}

// PoolResponse binds the pool view
func PoolResponse(v PoolView) api.Pool {
	resp := api.Pool{
		Balance:                   v.State.Balance.Dec(),
		Reserved:                  v.State.Reserved.Dec(),
		Available:                 v.State.Available().Dec(),
		TotalStakedPoints:         v.State.TotalWeight,
		NextDistribution:          timestamp(v.Next),
		DaysUntilNextDistribution: v.DaysLeft,
		FundingAuthority:          string(v.Authority),
	}
	if !v.State.LastDistribution.IsZero() {
		last := timestamp(v.State.LastDistribution)
		resp.LastDistribution = &last
	}
	return resp
}

// FundingsResponse binds one page of the funding history
func FundingsResponse(records []ledger.FundingRecord) api.FundingsResponse {
	fundings := make([]api.Funding, len(records))
	for i, f := range records {
		fundings[i] = api.Funding{
			RequestID: f.RequestID.String(),
			Funder:    string(f.Funder),
			Amount:    f.Amount.Dec(),
			FundedAt:  timestamp(f.FundedAt),
		}
	}
	return api.FundingsResponse{Data: fundings}
}

// DistributionResponse binds a distribution preview
func DistributionResponse(preview []ledger.Distribution) api.DistributionResponse {
	data := make([]api.Distribution, len(preview))
	for i, d := range preview {
		data[i] = api.Distribution{
			Account: string(d.Account),
			Amount:  d.Amount.Dec(),
			Records: d.Records,
		}
	}
	return api.DistributionResponse{Data: data}
}

// RequestResponse binds a request; the error text is the one an API error would expose
func RequestResponse(r ledger.Request) api.Request {
	resp := api.Request{
		ID:       r.ID.String(),
		Kind:     string(r.Kind),
		Caller:   string(r.Caller),
		State:    string(r.State),
		IssuedAt: timestamp(r.IssuedAt),
		AssetIDs: assetIDs(r.AssetIDs),
		RecordID: uint64(r.RecordID),
		Amount:   amount(r.Amount),
	}
	if !r.DoneAt.IsZero() {
		resp.DoneAt = timestamp(r.DoneAt)
	}
	if r.Err != nil {
		resp.Error = api.Wrap(r.Err).Error()
	}
	return resp
}

func assetIDs(ids []ledger.AssetID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func amount(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
