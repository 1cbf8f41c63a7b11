package api

import "net/http"

type indexResponse struct {
	Service string            `json:"service"`
	Network string            `json:"network"`
	Routes  map[string]string `json:"routes"`
}

// getIndex is the discovery route: a service banner and the route map.
func (h *Handler) getIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Service: "tollgate",
		Network: h.gateway.Gate().Network(),
		Routes: map[string]string{
			"ANY /proxy/{id}/{path}":      "forward to a registered endpoint",
			"ANY /paid-proxy/{id}/{path}": "forward with per-request payment",
			"POST /endpoints":             "register an endpoint",
			"GET /endpoints/json":         "list endpoints",
			"GET /endpoints/{id}/calls":   "list recorded calls",
			"GET /stats":                  "usage totals",
		},
	})
}
