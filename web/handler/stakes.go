package handler

import (
	"net/http"

	"github.com/screwyprof/hivestake/pkg/httpkit"
	"github.com/screwyprof/hivestake/web/api"
	"github.com/screwyprof/hivestake/web/handler/bind"
)

// Stake routes
const (
	StakeRoute      = http.MethodPost + " /stakes"
	BatchStakeRoute = http.MethodPost + " /stakes/batch"
	ClaimRoute      = http.MethodPost + " /claims"
	UnstakeRoute    = http.MethodPost + " /unstakes"
	GetStakesRoute  = http.MethodGet + " /accounts/{account}/stakes"
	GetAccountRoute = http.MethodGet + " /accounts/{account}"
)

// Stakes serves staking, claiming, unstaking and the per-account queries
type Stakes struct {
	workflow Workflow
	ingestor Ingestor
	reader   StakeReader
}

func NewStakes(workflow Workflow, ingestor Ingestor, reader StakeReader) *Stakes {
	return &Stakes{
		workflow: workflow,
		ingestor: ingestor,
		reader:   reader,
	}
}

func (h *Stakes) AddRoutes(m *http.ServeMux) {
	m.Handle(StakeRoute, httpkit.HandlerFunc(h.Stake))
	m.Handle(BatchStakeRoute, httpkit.HandlerFunc(h.BatchStake))
	m.Handle(ClaimRoute, httpkit.HandlerFunc(h.Claim))
	m.Handle(UnstakeRoute, httpkit.HandlerFunc(h.Unstake))
	m.Handle(GetStakesRoute, httpkit.HandlerFunc(h.GetStakes))
	m.Handle(GetAccountRoute, httpkit.HandlerFunc(h.GetAccount))
}

func (h *Stakes) Stake(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	caller, err := bind.Caller(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	asset, err := bind.StakeRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	id, err := h.workflow.Stake(r.Context(), caller, asset)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.Accepted(bind.RequestAccepted(id))
}

// BatchStake commits every event or none; only the ingest authority may call it
func (h *Stakes) BatchStake(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	caller, err := bind.Caller(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	events, err := bind.BatchStakeRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	ok, err := h.ingestor.Submit(r.Context(), caller, events)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.JSON(api.BatchStakeResponse{OK: ok})
}

func (h *Stakes) Claim(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	caller, err := bind.Caller(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	receipt, err := h.workflow.Claim(r.Context(), caller)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.Accepted(bind.ClaimAccepted(receipt))
}

func (h *Stakes) Unstake(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	caller, err := bind.Caller(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	sel, err := bind.UnstakeRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	id, err := h.workflow.Unstake(r.Context(), caller, sel)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.Accepted(bind.RequestAccepted(id))
}

func (h *Stakes) GetStakes(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	views := h.reader.UserStakes(bind.AccountPath(r))
	return httpkit.JSON(bind.StakesResponse(views))
}

func (h *Stakes) GetAccount(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	summary, err := h.reader.AccountSummary(bind.AccountPath(r))
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.JSON(bind.AccountResponse(summary))
}
