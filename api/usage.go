package api

import (
	"errors"
	"net/http"

	tollgate "github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/usage"
)

func (h *Handler) listCalls(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	// 404 for unknown endpoints rather than an empty list.
	if _, getErr := h.gateway.Endpoints().Get(r.Context(), epID); getErr != nil {
		if errors.Is(getErr, tollgate.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	opts := usage.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	calls, err := h.gateway.Store().ListCalls(r.Context(), epID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, calls)
}

type statsResponse struct {
	TotalCalls int64  `json:"total_calls"`
	Network    string `json:"network"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.gateway.Store().CountCalls(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalCalls: total,
		Network:    h.gateway.Gate().Network(),
	})
}
