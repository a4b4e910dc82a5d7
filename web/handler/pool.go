package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/screwyprof/hivestake/pkg/httpkit"
	"github.com/screwyprof/hivestake/web/api"
	"github.com/screwyprof/hivestake/web/funding"
	"github.com/screwyprof/hivestake/web/handler/bind"
)

// Pool routes
const (
	GetPoolRoute         = http.MethodGet + " /pool"
	FundRoute            = http.MethodPost + " /pool/fundings"
	GetFundingsRoute     = http.MethodGet + " /pool/fundings"
	SetAuthorityRoute    = http.MethodPut + " /pool/authority"
	GetDistributionRoute = http.MethodGet + " /pool/distribution"
)

// Sentinel errors
var (
	ErrQueryFailed = errors.New("failed to query funding history")
)

// Pool serves the reward pool: funding, its history, the funding role and the schedule
type Pool struct {
	workflow Workflow
	reader   PoolReader
	finder   funding.Finder
	clock    Clock
}

func NewPool(workflow Workflow, reader PoolReader, finder funding.Finder, clock Clock) *Pool {
	return &Pool{
		workflow: workflow,
		reader:   reader,
		finder:   finder,
		clock:    clock,
	}
}

func (h *Pool) AddRoutes(m *http.ServeMux) {
	m.Handle(GetPoolRoute, httpkit.HandlerFunc(h.GetPool))
	m.Handle(FundRoute, httpkit.HandlerFunc(h.Fund))
	m.Handle(GetFundingsRoute, httpkit.HandlerFunc(h.GetFundings))
	m.Handle(SetAuthorityRoute, httpkit.HandlerFunc(h.SetAuthority))
	m.Handle(GetDistributionRoute, httpkit.HandlerFunc(h.GetDistribution))
}

func (h *Pool) GetPool(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	now := h.clock.Now()
	view := bind.PoolView{
		State:     h.reader.Pool(),
		Next:      h.reader.NextDistributionTime(),
		DaysLeft:  h.reader.DaysUntilNextDistribution(now),
		Authority: h.reader.FundingAuthority(),
	}
	return httpkit.JSON(bind.PoolResponse(view))
}

func (h *Pool) Fund(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	caller, err := bind.Caller(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	amount, err := bind.FundRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	id, err := h.workflow.Fund(r.Context(), caller, amount)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.Accepted(bind.RequestAccepted(id))
}

func (h *Pool) SetAuthority(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	caller, err := bind.Caller(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	next, err := bind.AuthorityRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	if err := h.reader.SetFundingAuthority(r.Context(), caller, next); err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.JSON(api.Authority{Account: string(next)})
}

func (h *Pool) GetDistribution(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	preview := h.reader.PreviewDistribution(h.clock.Now())
	return httpkit.JSON(bind.DistributionResponse(preview))
}

func (h *Pool) GetFundings(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetFundingsRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	criteria, err := funding.NewCriteria(req.Year, req.Page, req.PerPage, h.clock.Now())
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	page, err := h.finder.FindFundings(r.Context(), criteria)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	if linkHeader := buildPaginationLinks(page, r.URL); linkHeader != "" {
		w.Header().Set("Link", linkHeader)
	}

	return httpkit.JSON(bind.FundingsResponse(page.Records))
}

// buildPaginationLinks creates a GitHub-style Link header with prev and next only.
// "last" would need a count query.
func buildPaginationLinks(page *funding.RecordsPage, baseURL *url.URL) string {
	var links []string

	u := *baseURL
	query := u.Query()

	if page.HasPrevious() {
		query.Set("page", fmt.Sprintf("%d", page.Number-1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, u.String()))
	}

	if page.HasNext() {
		query.Set("page", fmt.Sprintf("%d", page.Number+1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, u.String()))
	}

	return strings.Join(links, ", ")
}
