package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	tollgate "github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
)

type endpointRequest struct {
	Name            string            `json:"name"`
	TargetURL       string            `json:"target_url"`
	AuthType        string            `json:"auth_type"`
	AuthKey         string            `json:"auth_key,omitempty"`
	AuthValue       string            `json:"auth_value,omitempty"`
	RequiresPayment *bool             `json:"requires_payment,omitempty"`
	Price           string            `json:"price,omitempty"`
	PayoutAddress   string            `json:"payout_address,omitempty"`
	RateLimit       int               `json:"rate_limit,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// decodeEndpointRequest reads the body once, schema-validates it, then maps
// it onto the request struct.
func decodeEndpointRequest(r *http.Request) (*endpointRequest, error) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := validateRegistration(doc); err != nil {
		return nil, err
	}

	var req endpointRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (req *endpointRequest) toInput() endpoint.Input {
	return endpoint.Input{
		Name:            req.Name,
		TargetURL:       req.TargetURL,
		AuthType:        req.AuthType,
		AuthKey:         req.AuthKey,
		AuthValue:       req.AuthValue,
		RequiresPayment: req.RequiresPayment,
		Price:           req.Price,
		PayoutAddress:   req.PayoutAddress,
		RateLimit:       req.RateLimit,
		Metadata:        req.Metadata,
	}
}

func (h *Handler) createEndpoint(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEndpointRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ep, err := h.gateway.Endpoints().Create(r.Context(), req.toInput())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, ep)
}

func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	opts := endpoint.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if v := r.URL.Query().Get("enabled"); v == "true" || v == "false" {
		enabled := v == "true"
		opts.Enabled = &enabled
	}

	eps, err := h.gateway.Endpoints().List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, eps)
}

func (h *Handler) getEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	ep, getErr := h.gateway.Endpoints().Get(r.Context(), epID)
	if getErr != nil {
		if errors.Is(getErr, tollgate.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) updateEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	req, err := decodeEndpointRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ep, updateErr := h.gateway.Endpoints().Update(r.Context(), epID, req.toInput())
	if updateErr != nil {
		if errors.Is(updateErr, tollgate.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		var verr *endpoint.ValidationError
		if errors.As(updateErr, &verr) {
			writeError(w, http.StatusBadRequest, updateErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, updateErr.Error())
		return
	}

	h.gateway.Limiter().Reset(epID.String())
	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	if deleteErr := h.gateway.Endpoints().Delete(r.Context(), epID); deleteErr != nil {
		if errors.Is(deleteErr, tollgate.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	h.gateway.Limiter().Reset(epID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *Handler) disableEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	if setErr := h.gateway.Endpoints().SetEnabled(r.Context(), epID, enabled); setErr != nil {
		if errors.Is(setErr, tollgate.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, setErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
