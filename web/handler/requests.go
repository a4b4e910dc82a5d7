package handler

import (
	"net/http"

	"github.com/screwyprof/hivestake/pkg/httpkit"
	"github.com/screwyprof/hivestake/web/api"
	"github.com/screwyprof/hivestake/web/handler/bind"
)

const GetRequestRoute = http.MethodGet + " /requests/{id}"

// Requests reports the state of issued two-phase requests
type Requests struct {
	workflow Workflow
}

func NewRequests(workflow Workflow) *Requests {
	return &Requests{workflow: workflow}
}

func (h *Requests) AddRoutes(m *http.ServeMux) {
	m.Handle(GetRequestRoute, httpkit.HandlerFunc(h.GetRequest))
}

func (h *Requests) GetRequest(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	id, err := bind.RequestPath(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	req, err := h.workflow.Request(id)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	return httpkit.JSON(bind.RequestResponse(req))
}
