package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/archive"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/payment"
)

// fakeSettler accepts tokens of the form "paid:<txid>" and declines the rest.
type fakeSettler struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSettler) Settle(_ context.Context, token string, req payment.Requirement) (*payment.Receipt, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	txid, ok := strings.CutPrefix(token, "paid:")
	if !ok || req.Amount != 1000 {
		return nil, model.PaymentRequired("Payment settlement failed: declined")
	}
	return &payment.Receipt{Payer: "SP000PAYER", TxID: txid}, nil
}

func newPaidServer(t *testing.T) (*fakeSettler, http.Handler) {
	t.Helper()
	settler := &fakeSettler{}
	_, _, h := newTestServerWith(Options{
		PaidBriefs: true,
		PriceSats:  1000,
		ShareBPS:   7000,
		Settler:    settler,
		Asset:      "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4.sbtc-token",
		PayTo:      "SP236MA9EWHF1DN3X84EQAJEW7R6BDZZ93K3EMC3C",
	})
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	fileSignal(t, h, "btc-macro", agentA, "Hashrate at a new high")
	compileBrief(t, h, agentA)
	return settler, h
}

func paidRequest(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set(payment.HeaderPayment, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPaidBrief_ChallengeWithoutToken(t *testing.T) {
	settler, h := newPaidServer(t)

	rec := paidRequest(h, "/v1/brief", "")
	requireStatus(t, rec, http.StatusPaymentRequired)
	var ch payment.Challenge
	decodeJSON(t, rec, &ch)
	if ch.Amount != 1000 || ch.PayTo != "SP236MA9EWHF1DN3X84EQAJEW7R6BDZZ93K3EMC3C" {
		t.Fatalf("challenge = %+v", ch)
	}

	raw, err := base64.StdEncoding.DecodeString(rec.Header().Get(payment.HeaderPaymentRequired))
	if err != nil {
		t.Fatalf("decode %s: %v", payment.HeaderPaymentRequired, err)
	}
	var acc payment.Accepts
	if err := json.Unmarshal(raw, &acc); err != nil {
		t.Fatalf("unmarshal accepts: %v", err)
	}
	if acc.X402Version != payment.Version || len(acc.Accepts) != 1 || acc.Accepts[0].Network != payment.Network {
		t.Fatalf("accepts = %+v", acc)
	}
	if settler.calls != 0 {
		t.Fatalf("settler called %d times", settler.calls)
	}
}

func TestPaidBrief_SettlesAndCredits(t *testing.T) {
	_, h := newPaidServer(t)

	rec := paidRequest(h, "/v1/brief", "paid:tx1")
	requireStatus(t, rec, http.StatusOK)
	if rec.Header().Get(payment.HeaderPaymentResponse) == "" {
		t.Fatalf("missing %s header", payment.HeaderPaymentResponse)
	}
	var resp briefResponse
	decodeJSON(t, rec, &resp)
	if resp.Payment == nil || resp.Payment.TxID != "tx1" {
		t.Fatalf("payment = %+v", resp.Payment)
	}

	rec = doRequest(t, h, "GET", "/v1/earnings/"+agentA, nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var e model.Earnings
	decodeJSON(t, rec, &e)
	if e.Total != 700 || len(e.Payments) != 1 || e.Payments[0].TxID != "tx1" {
		t.Fatalf("earnings = %+v", e)
	}

	rec = paidRequest(h, "/v1/brief", "paid:tx1")
	requireStatus(t, rec, http.StatusConflict)
}

func TestPaidBrief_Failures(t *testing.T) {
	settler, h := newPaidServer(t)

	rec := paidRequest(h, "/v1/brief", "forged")
	requireStatus(t, rec, http.StatusPaymentRequired)

	// A missing brief is never settled.
	before := settler.calls
	rec = paidRequest(h, "/v1/brief/2026-01-01", "paid:tx2")
	requireStatus(t, rec, http.StatusNotFound)
	if settler.calls != before {
		t.Fatal("settler called for a missing brief")
	}
}

func TestArchiveExport(t *testing.T) {
	store := kv.NewMemory()
	dest := &captureDestination{}
	sched := archive.NewScheduler(store, []archive.Destination{dest}, 0, nil)
	now := func() time.Time { return time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC) }
	srv := NewNewsServer(store, nil, Options{Archive: sched, Now: now})
	h := srv.NewHTTPHandler("op-token")

	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)

	rec := doRequest(t, h, "POST", "/v1/archive/export", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusUnauthorized)

	req := httptest.NewRequest("POST", "/v1/archive/export", nil)
	req.Header.Set("Authorization", "Bearer op-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)

	var res archive.Result
	decodeJSON(t, rec, &res)
	if res.Destinations != 1 || res.Failed != 0 || res.Bytes != len(dest.data) {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(string(dest.data), `"btc-macro"`) {
		t.Fatalf("snapshot missing beat:\n%s", dest.data)
	}

	// Read routes stay open with an operator token configured.
	rec = doRequest(t, h, "GET", "/v1/beats", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
}

func TestArchiveExport_NotConfigured(t *testing.T) {
	_, _, h := newTestServer()
	rec := doRequest(t, h, "POST", "/v1/archive/export", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusServiceUnavailable)
}

type captureDestination struct {
	data []byte
}

func (d *captureDestination) Write(_ context.Context, data []byte) error {
	d.data = append([]byte(nil), data...)
	return nil
}
