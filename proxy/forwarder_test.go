package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tollgate/tollgate/auth"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
)

func testEndpoint(targetURL string, authCfg auth.Config) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:    entity.New(),
		ID:        id.NewEndpointID(),
		Name:      "test",
		TargetURL: targetURL,
		Auth:      authCfg,
		Enabled:   true,
	}
}

func TestForward_RelaysBinaryBody(t *testing.T) {
	// Bytes that would break any string round trip.
	payload := []byte{0x00, 0xff, 0x1f, 0x8b, 0x07, 0x42, 0xfe}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	ep := testEndpoint(upstream.URL, auth.Config{Type: auth.TypeNone})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.test/proxy/x/audio", nil)

	result := f.Forward(rec, req, ep, "/audio")
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("body not byte-identical: got %x want %x", rec.Body.Bytes(), payload)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content type not relayed, got %q", ct)
	}
}

func TestForward_AppendsSuffixAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	ep := testEndpoint(upstream.URL+"/v1", auth.Config{Type: auth.TypeNone})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.test/proxy/x/search?q=hello&page=2", nil)

	f.Forward(rec, req, ep, "/search")
	if gotPath != "/v1/search" {
		t.Fatalf("expected path /v1/search, got %q", gotPath)
	}
	if gotQuery != "q=hello&page=2" {
		t.Fatalf("expected query preserved, got %q", gotQuery)
	}
}

func TestForward_InjectsCredential(t *testing.T) {
	var gotKey []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Values("X-Api-Key")
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	ep := testEndpoint(upstream.URL, auth.Config{Type: auth.TypeHeader, Key: "X-Api-Key", Value: "server-secret"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.test/proxy/x", nil)
	// A client trying to smuggle its own credential.
	req.Header.Set("X-Api-Key", "client-supplied")

	f.Forward(rec, req, ep, "")
	if len(gotKey) != 1 || gotKey[0] != "server-secret" {
		t.Fatalf("expected single server credential upstream, got %v", gotKey)
	}
}

func TestForward_StreamsRequestBody(t *testing.T) {
	var gotBody []byte
	var gotMethod string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	ep := testEndpoint(upstream.URL, auth.Config{Type: auth.TypeNone})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "http://gw.test/proxy/x", bytes.NewReader([]byte(`{"a":1}`)))

	f.Forward(rec, req, ep, "")
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %q", gotMethod)
	}
	if string(gotBody) != `{"a":1}` {
		t.Fatalf("body not forwarded, got %q", gotBody)
	}
}

func TestForward_StripsHopHeaders(t *testing.T) {
	var gotConnection, gotProxyAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotConnection = r.Header.Get("Proxy-Connection")
		gotProxyAuth = r.Header.Get("Proxy-Authorization")
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	ep := testEndpoint(upstream.URL, auth.Config{Type: auth.TypeNone})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.test/proxy/x", nil)
	req.Header.Set("Proxy-Connection", "keep-alive")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("X-Custom", "kept")

	f.Forward(rec, req, ep, "")
	if gotConnection != "" || gotProxyAuth != "" {
		t.Fatalf("hop headers leaked: %q %q", gotConnection, gotProxyAuth)
	}
}

func TestForward_RelaysUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer upstream.Close()

	f := NewForwarder(Config{}, nil)
	ep := testEndpoint(upstream.URL, auth.Config{Type: auth.TypeNone})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.test/proxy/x", nil)

	result := f.Forward(rec, req, ep, "")
	if result.StatusCode != http.StatusTeapot {
		t.Fatalf("expected 418 relayed, got %d", result.StatusCode)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418 written, got %d", rec.Code)
	}
}

func TestForward_UpstreamUnreachable(t *testing.T) {
	f := NewForwarder(Config{Timeout: 200 * time.Millisecond}, nil)
	// Closed port: connection refused.
	ep := testEndpoint("http://127.0.0.1:1", auth.Config{Type: auth.TypeNone})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.test/proxy/x", nil)

	result := f.Forward(rec, req, ep, "")
	if result.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", result.StatusCode)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 written, got %d", rec.Code)
	}
	// Uniform opaque body, no internals leaked.
	if body := rec.Body.String(); body != "{\"error\":\"proxy request failed\"}\n" {
		t.Fatalf("unexpected failure body: %q", body)
	}
}
