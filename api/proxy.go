package api

import (
	"errors"
	"net/http"
	"strings"

	tollgate "github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/payment"
	"github.com/tollgate/tollgate/usage"
)

// serveProxy is the forwarding pipeline: lookup, rate limit, payment gate,
// forward, record. The endpoint's stored payment flag decides whether the
// gate runs; the URL prefix is just an addressing convention.
func (h *Handler) serveProxy(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	ep, err := h.gateway.Lookup(r.Context(), epID)
	if err != nil {
		if errors.Is(err, tollgate.ErrEndpointNotFound) || errors.Is(err, tollgate.ErrEndpointDisabled) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	suffix := r.PathValue("suffix")
	if suffix != "" {
		suffix = "/" + suffix
	}

	if !h.gateway.Limiter().Allow(ep.ID.String(), ep.RateLimit) {
		if m := h.gateway.Metrics(); m != nil {
			m.RateLimitedTotal.Inc()
		}
		h.record(ep.ID, r, http.StatusTooManyRequests, 0, "", "")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var cost, settlementRef string
	if ep.Paid() {
		settlement, ok := h.authorizePayment(w, r, ep.Price, ep.PayoutAddress, ep.Name)
		if !ok {
			return
		}
		cost = ep.Price
		settlementRef = settlement.Transaction
	}

	result := h.gateway.Forwarder().Forward(w, r, ep, suffix)
	h.record(ep.ID, r, result.StatusCode, result.LatencyMs, cost, settlementRef)
}

// authorizePayment runs the payment gate for a paid endpoint. When it returns
// ok=false the response has already been written and no upstream call may be
// made. On success the settlement reference header is set for the caller.
func (h *Handler) authorizePayment(w http.ResponseWriter, r *http.Request, price, payTo, name string) (*payment.Settlement, bool) {
	gate := h.gateway.Gate()

	req, err := gate.RequirementFor(price, payTo, resourceURL(r), "Payment for "+name+" API")
	if err != nil {
		// Only reachable with corrupted registration data.
		h.logger.ErrorContext(r.Context(), "payment requirement build failed",
			"resource", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	settlement, err := gate.Authorize(r.Context(), r, req)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentRequired):
			writeJSON(w, http.StatusPaymentRequired, gate.Challenge(req, "X-PAYMENT header is required"))
		case errors.Is(err, payment.ErrMalformedProof):
			writeError(w, http.StatusBadRequest, "invalid payment header")
		case errors.Is(err, tollgate.ErrProofReused):
			writeError(w, http.StatusConflict, "payment proof already used")
		case errors.Is(err, payment.ErrPaymentInvalid):
			writeJSON(w, http.StatusPaymentRequired, gate.Challenge(req, rejectionReason(err)))
		default:
			h.logger.ErrorContext(r.Context(), "payment verification failed",
				"resource", r.URL.Path, "error", err)
			writeError(w, http.StatusBadGateway, "payment verification failed")
		}
		return nil, false
	}

	header, err := settlement.EncodeHeader()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "encode settlement header failed", "error", err)
	} else {
		w.Header().Set(payment.SettlementHeader, header)
	}
	return settlement, true
}

func (h *Handler) record(epID id.ID, r *http.Request, status, latencyMs int, cost, settlementRef string) {
	h.gateway.Recorder().Record(&usage.Record{
		EndpointID:    epID,
		Method:        r.Method,
		RequestPath:   r.URL.Path,
		StatusCode:    status,
		Cost:          cost,
		SettlementRef: settlementRef,
		LatencyMs:     latencyMs,
	})
}

// resourceURL reconstructs the absolute URL the caller requested, used as the
// resource identifier in payment requirements.
func resourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// rejectionReason strips the sentinel prefix from a payment rejection so the
// challenge body carries just the facilitator's reason.
func rejectionReason(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, payment.ErrPaymentInvalid.Error()+": "); ok {
		return rest
	}
	return msg
}
