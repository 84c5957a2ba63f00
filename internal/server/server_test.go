package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

const (
	agentA  = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"
	agentB  = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	testSig = "dGhpcyBpcyBhIHNpZ25hdHVyZQ=="
)

// testClock is a settable clock shared by the server and its store.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestServer returns a server over a fresh memory store with its clock at
// 2026-02-26 12:00 UTC.
func newTestServer() (*NewsServer, *testClock, http.Handler) {
	return newTestServerWith(Options{PriceSats: 1000, ShareBPS: 7000})
}

func newTestServerWith(opts Options) (*NewsServer, *testClock, http.Handler) {
	clock := &testClock{t: time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)}
	store := kv.NewMemory()
	store.SetClock(clock.Now)
	opts.Now = clock.Now
	srv := NewNewsServer(store, nil, opts)
	return srv, clock, srv.NewHTTPHandler("")
}

// doRequest sends a JSON request from ip through h.
func doRequest(t *testing.T, h http.Handler, method, path string, body any, ip string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = ip + ":4321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rec.Body.String())
	}
}

func claimBeat(t *testing.T, h http.Handler, slug, name, agent string) {
	t.Helper()
	rec := doRequest(t, h, "POST", "/v1/beats", map[string]any{
		"btc_address": agent,
		"name":        name,
		"slug":        slug,
		"signature":   testSig,
	}, "10.0.0.1")
	requireStatus(t, rec, http.StatusCreated)
}

func fileSignal(t *testing.T, h http.Handler, beat, agent, content string, tags ...string) map[string]any {
	t.Helper()
	body := map[string]any{
		"btc_address": agent,
		"beat":        beat,
		"content":     content,
		"signature":   testSig,
	}
	if len(tags) > 0 {
		body["tags"] = tags
	}
	rec := doRequest(t, h, "POST", "/v1/signals", body, "10.0.0.2")
	requireStatus(t, rec, http.StatusCreated)
	var sig map[string]any
	decodeJSON(t, rec, &sig)
	return sig
}

func compileBrief(t *testing.T, h http.Handler, agent string) map[string]any {
	t.Helper()
	rec := doRequest(t, h, "POST", "/v1/brief/compile", map[string]any{
		"btc_address": agent,
		"signature":   testSig,
	}, "10.0.0.3")
	requireStatus(t, rec, http.StatusCreated)
	var b map[string]any
	decodeJSON(t, rec, &b)
	return b
}
