// Package proxy relays client requests to registered upstream APIs.
package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/observability"
)

// Hop-by-hop and transport headers that must never be forwarded verbatim.
// The outbound transport recomputes framing; Host is carried on the request
// itself, not in the header map.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// Response headers invalidated by re-transport. Content-Encoding is kept:
// body bytes are relayed untouched, so the encoding header stays accurate
// (the transport strips it itself whenever it transparently decompresses).
var dropResponseHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Content-Length",
	"Trailer",
	"Upgrade",
}

// bodyMethods are the methods that conventionally carry a request body.
// DELETE is included permissively.
var bodyMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Config holds forwarder configuration.
type Config struct {
	// Timeout bounds each upstream call, connection to last body byte.
	Timeout time.Duration

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Forwarder relays a single request to an endpoint's upstream and streams
// the response back. It is stateless and performs no retries; the request
// context cancels the upstream call when the client disconnects.
type Forwarder struct {
	client *http.Client
	config Config
	logger *slog.Logger
}

// NewForwarder creates a forwarder with the given upstream timeout.
func NewForwarder(cfg Config, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Forwarder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Result summarizes one forward for usage recording.
type Result struct {
	// StatusCode is the status relayed to the caller.
	StatusCode int

	// LatencyMs is the upstream round-trip time in milliseconds.
	LatencyMs int

	// Error is non-empty when the forward failed before a response could
	// be relayed.
	Error string
}

// Forward relays r to ep's upstream, appending suffix and the inbound query
// string to the target base URL, and writes the upstream response to w.
//
// Any upstream failure is reported to the caller as a uniform 502 without
// leaking internals. Forward never panics the serving goroutine on upstream
// misbehavior.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, ep *endpoint.Endpoint, suffix string) Result {
	upstreamURL := ep.TargetURL + suffix
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if bodyMethods[r.Method] {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, body)
	if err != nil {
		f.logger.ErrorContext(r.Context(), "build upstream request failed",
			"endpoint_id", ep.ID, "error", err)
		return f.fail(w, http.StatusBadGateway)
	}
	if body != nil {
		req.ContentLength = r.ContentLength
	}

	copyRequestHeaders(req.Header, r.Header)

	// Server credential wins over anything the client forwarded.
	if err := ep.Auth.Apply(req); err != nil {
		// Only reachable with corrupted registration data.
		f.logger.ErrorContext(r.Context(), "auth injection failed",
			"endpoint_id", ep.ID, "error", err)
		return f.fail(w, http.StatusBadGateway)
	}

	var span trace.Span
	if f.config.Tracer != nil {
		_, span = f.config.Tracer.StartForwardSpan(r.Context(), ep.ID.String(), r.Method, ep.TargetURL)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		f.logger.WarnContext(r.Context(), "upstream request failed",
			"endpoint_id", ep.ID, "error", err, "latency_ms", latency)
		if span != nil {
			f.config.Tracer.EndForwardSpan(span, 0, int(latency), err.Error())
		}
		if f.config.Metrics != nil {
			f.config.Metrics.RecordForward("upstream_error", float64(latency)/1000.0)
		}
		res := f.fail(w, http.StatusBadGateway)
		res.LatencyMs = int(latency)
		res.Error = "upstream request failed"
		return res
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	// Raw byte relay: binary payloads (audio, images, octet-stream) pass
	// through byte-for-byte, never re-encoded.
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Status already sent; nothing to do but log.
		f.logger.WarnContext(r.Context(), "response relay interrupted",
			"endpoint_id", ep.ID, "error", err)
	}

	if span != nil {
		f.config.Tracer.EndForwardSpan(span, resp.StatusCode, int(latency), "")
	}
	if f.config.Metrics != nil {
		f.config.Metrics.RecordForward("ok", float64(latency)/1000.0)
	}

	f.logger.DebugContext(r.Context(), "request forwarded",
		"endpoint_id", ep.ID,
		"method", r.Method,
		"status", resp.StatusCode,
		"latency_ms", latency,
	)

	return Result{StatusCode: resp.StatusCode, LatencyMs: int(latency)}
}

// fail writes the uniform proxy failure response.
func (f *Forwarder) fail(w http.ResponseWriter, status int) Result {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": "proxy request failed"}) //nolint:errcheck // best effort
	return Result{StatusCode: status, Error: "proxy request failed"}
}

func copyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		dst[key] = append([]string(nil), values...)
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if isDroppedResponseHeader(key) {
			continue
		}
		dst[key] = append([]string(nil), values...)
	}
}

func isHopHeader(key string) bool {
	for _, h := range hopHeaders {
		if http.CanonicalHeaderKey(key) == h {
			return true
		}
	}
	return false
}

func isDroppedResponseHeader(key string) bool {
	for _, h := range dropResponseHeaders {
		if http.CanonicalHeaderKey(key) == h {
			return true
		}
	}
	return false
}
