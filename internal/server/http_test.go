package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/model"
)

func TestHandleHealth(t *testing.T) {
	_, _, h := newTestServer()
	rec := doRequest(t, h, "GET", "/v1/health", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("status = %q", body["status"])
	}
}

func TestBeats_ClaimListUpdate(t *testing.T) {
	_, _, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)

	rec := doRequest(t, h, "GET", "/v1/beats", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var list struct {
		Beats []model.Beat `json:"beats"`
		Total int          `json:"total"`
	}
	decodeJSON(t, rec, &list)
	if list.Total != 1 || list.Beats[0].Slug != "btc-macro" || list.Beats[0].Color != model.DefaultBeatColor {
		t.Fatalf("beats = %+v", list)
	}

	rec = doRequest(t, h, "PATCH", "/v1/beats/btc-macro", map[string]any{
		"btc_address": agentA,
		"color":       "#ff0000",
		"signature":   testSig,
	}, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var beat model.Beat
	decodeJSON(t, rec, &beat)
	if beat.Color != "#ff0000" {
		t.Fatalf("color = %q", beat.Color)
	}

	// Only the claimant may update.
	rec = doRequest(t, h, "PATCH", "/v1/beats/btc-macro", map[string]any{
		"btc_address": agentB,
		"color":       "#00ff00",
		"signature":   testSig,
	}, "10.0.0.9")
	requireStatus(t, rec, http.StatusForbidden)
}

func TestBeats_ClaimErrors(t *testing.T) {
	_, _, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)

	for _, tc := range []struct {
		name string
		body map[string]any
		code int
	}{
		{"Taken", map[string]any{"btc_address": agentB, "name": "Macro", "slug": "btc-macro", "signature": testSig}, http.StatusConflict},
		{"BadSlug", map[string]any{"btc_address": agentB, "name": "X", "slug": "-bad-", "signature": testSig}, http.StatusBadRequest},
		{"NoSignature", map[string]any{"btc_address": agentB, "name": "X", "slug": "ordinals"}, http.StatusUnauthorized},
		{"MissingFields", map[string]any{"btc_address": agentB}, http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, "POST", "/v1/beats", tc.body, "10.1.0."+tc.name)
			requireStatus(t, rec, tc.code)
			var body errorBody
			decodeJSON(t, rec, &body)
			if body.Error == "" {
				t.Fatal("expected error message")
			}
		})
	}

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/beats", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		requireStatus(t, rec, http.StatusBadRequest)
	})
}

func TestBeats_ClaimRateLimited(t *testing.T) {
	_, _, h := newTestServer()
	for i := range 5 {
		rec := doRequest(t, h, "POST", "/v1/beats", map[string]any{"btc_address": agentA}, "10.2.0.1")
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited early", i)
		}
	}
	rec := doRequest(t, h, "POST", "/v1/beats", map[string]any{"btc_address": agentA}, "10.2.0.1")
	requireStatus(t, rec, http.StatusTooManyRequests)
	if ra := rec.Header().Get("Retry-After"); ra != "3600" {
		t.Fatalf("Retry-After = %q, want 3600", ra)
	}

	// A different caller is unaffected.
	rec = doRequest(t, h, "POST", "/v1/beats", map[string]any{"btc_address": agentA}, "10.2.0.2")
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestSignals_FileGetCorrect(t *testing.T) {
	_, _, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)

	sig := fileSignal(t, h, "btc-macro", agentA, "Hashrate at a new high", "mining")
	id, _ := sig["id"].(string)
	if !strings.HasPrefix(id, "s_") {
		t.Fatalf("id = %q", id)
	}

	rec := doRequest(t, h, "GET", "/v1/signals/"+id, nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var got model.Signal
	decodeJSON(t, rec, &got)
	if got.Content != "Hashrate at a new high" || got.BTCAddress != agentA {
		t.Fatalf("signal = %+v", got)
	}

	correct := map[string]any{"btc_address": agentA, "correction": "Off by one block", "signature": testSig}
	rec = doRequest(t, h, "PATCH", "/v1/signals/"+id, correct, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	decodeJSON(t, rec, &got)
	if got.Correction != "Off by one block" || got.Content != "Hashrate at a new high" {
		t.Fatalf("corrected signal = %+v", got)
	}

	rec = doRequest(t, h, "PATCH", "/v1/signals/"+id, correct, "10.0.0.9")
	requireStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, h, "GET", "/v1/signals/s_zzzz_aaaaaa", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusNotFound)
}

func TestSignals_FilingGate(t *testing.T) {
	_, clock, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	fileSignal(t, h, "btc-macro", agentA, "first")

	clock.Advance(3*time.Hour + 30*time.Minute)
	rec := doRequest(t, h, "POST", "/v1/signals", map[string]any{
		"btc_address": agentA, "beat": "btc-macro", "content": "too soon", "signature": testSig,
	}, "10.0.0.2")
	requireStatus(t, rec, http.StatusTooManyRequests)
	var body errorBody
	decodeJSON(t, rec, &body)
	if !strings.Contains(body.Error, "30 minutes") {
		t.Fatalf("error = %q", body.Error)
	}
	if rec.Header().Get("Retry-After") != "1800" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	clock.Advance(30 * time.Minute)
	fileSignal(t, h, "btc-macro", agentA, "on time")
}

func TestSignals_ListFilters(t *testing.T) {
	_, clock, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	claimBeat(t, h, "ordinals", "Ordinals", agentB)
	fileSignal(t, h, "btc-macro", agentA, "macro one", "fees")
	fileSignal(t, h, "ordinals", agentB, "ordinals one", "fees", "runes")
	clock.Advance(5 * time.Hour)
	fileSignal(t, h, "btc-macro", agentA, "macro two")

	type listResp struct {
		Signals []model.Signal `json:"signals"`
		Total   int            `json:"total"`
	}
	for _, tc := range []struct {
		query string
		want  int
		first string
	}{
		{"", 3, "macro two"},
		{"?beat=btc-macro", 2, "macro two"},
		{"?agent=" + agentB, 1, "ordinals one"},
		{"?tag=fees", 2, "ordinals one"},
		{"?tag=runes", 1, "ordinals one"},
		{"?limit=1", 3, "macro two"},
	} {
		t.Run(tc.query, func(t *testing.T) {
			rec := doRequest(t, h, "GET", "/v1/signals"+tc.query, nil, "10.0.0.9")
			requireStatus(t, rec, http.StatusOK)
			var resp listResp
			decodeJSON(t, rec, &resp)
			if resp.Total != tc.want || resp.Signals[0].Content != tc.first {
				t.Fatalf("total = %d first = %q", resp.Total, resp.Signals[0].Content)
			}
		})
	}
}

func TestBrief_CompileAndRead(t *testing.T) {
	_, _, h := newTestServer()

	rec := doRequest(t, h, "GET", "/v1/brief", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusNotFound)

	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	rec = doRequest(t, h, "POST", "/v1/brief/compile", map[string]any{"btc_address": agentA, "signature": testSig}, "10.0.0.3")
	requireStatus(t, rec, http.StatusNotFound)

	fileSignal(t, h, "btc-macro", agentA, "Hashrate at a new high")
	b := compileBrief(t, h, agentA)
	if b["date"] != "2026-02-26" {
		t.Fatalf("date = %v", b["date"])
	}

	rec = doRequest(t, h, "GET", "/v1/brief", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var resp briefResponse
	decodeJSON(t, rec, &resp)
	if !resp.Latest || resp.Date != "2026-02-26" || len(resp.Archive) != 1 || len(resp.Sections) != 1 {
		t.Fatalf("brief = %+v", resp)
	}
	if resp.Sections[0].Correspondent != agentA {
		t.Fatalf("section = %+v", resp.Sections[0])
	}

	rec = doRequest(t, h, "GET", "/v1/brief/2026-02-26?format=text", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Hashrate at a new high") {
		t.Fatalf("text edition missing content:\n%s", rec.Body.String())
	}

	rec = doRequest(t, h, "GET", "/v1/brief/2026-02-25", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusNotFound)
	rec = doRequest(t, h, "GET", "/v1/brief/yesterday", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, h, "GET", "/v1/briefs", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var idx struct {
		Briefs []string `json:"briefs"`
	}
	decodeJSON(t, rec, &idx)
	if len(idx.Briefs) != 1 || idx.Briefs[0] != "2026-02-26" {
		t.Fatalf("briefs = %v", idx.Briefs)
	}
}

func TestBrief_CompileForbiddenForNonCorrespondent(t *testing.T) {
	_, _, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	fileSignal(t, h, "btc-macro", agentA, "content")

	rec := doRequest(t, h, "POST", "/v1/brief/compile", map[string]any{"btc_address": agentB, "signature": testSig}, "10.0.0.3")
	requireStatus(t, rec, http.StatusForbidden)
}

func TestBrief_Inscription(t *testing.T) {
	_, _, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	fileSignal(t, h, "btc-macro", agentA, "content")
	compileBrief(t, h, agentA)

	rec := doRequest(t, h, "GET", "/v1/brief/2026-02-26/inscription", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var st map[string]any
	decodeJSON(t, rec, &st)
	if st["inscribed"] != false {
		t.Fatalf("inscription status = %v", st)
	}

	insID := strings.Repeat("a", 64) + "i0"
	body := map[string]any{"btc_address": agentA, "signature": testSig, "inscription_id": insID}
	rec = doRequest(t, h, "POST", "/v1/brief/2026-02-26/inscribe", body, "10.0.0.4")
	requireStatus(t, rec, http.StatusCreated)

	rec = doRequest(t, h, "POST", "/v1/brief/2026-02-26/inscribe", body, "10.0.0.4")
	requireStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, h, "GET", "/v1/brief/2026-02-26/inscription", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	decodeJSON(t, rec, &st)
	if st["inscribed"] != true || st["ordinal_link"] != "https://ordinals.com/inscription/"+insID {
		t.Fatalf("inscription status = %v", st)
	}
}

func TestViews_CorrespondentsStreaksStatus(t *testing.T) {
	_, clock, h := newTestServer()
	claimBeat(t, h, "btc-macro", "BTC Macro", agentA)
	claimBeat(t, h, "ordinals", "Ordinals", agentB)
	fileSignal(t, h, "btc-macro", agentA, "day one")
	clock.Advance(24 * time.Hour)
	fileSignal(t, h, "btc-macro", agentA, "day two")

	rec := doRequest(t, h, "GET", "/v1/correspondents", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var cs struct {
		Correspondents []model.Correspondent `json:"correspondents"`
		Total          int                   `json:"total"`
	}
	decodeJSON(t, rec, &cs)
	if cs.Total != 2 {
		t.Fatalf("total = %d", cs.Total)
	}
	top := cs.Correspondents[0]
	// 2 signals * 10 + streak 2 * 5 + 2 days * 2
	if top.Address != agentA || top.Score != 34 || top.AddressShort != "bc1qxy2k...hx0wlh" {
		t.Fatalf("top = %+v", top)
	}
	if cs.Correspondents[1].Score != 0 || len(cs.Correspondents[1].Beats) != 1 {
		t.Fatalf("second = %+v", cs.Correspondents[1])
	}

	rec = doRequest(t, h, "GET", "/v1/streaks?agent="+agentA, nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var st model.Streak
	decodeJSON(t, rec, &st)
	if st.Current != 2 || st.Longest != 2 || st.Agent != agentA {
		t.Fatalf("streak = %+v", st)
	}

	rec = doRequest(t, h, "GET", "/v1/streaks", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var all struct {
		Streaks map[string]model.Streak `json:"streaks"`
	}
	decodeJSON(t, rec, &all)
	if len(all.Streaks) != 2 || all.Streaks[agentB].Current != 0 {
		t.Fatalf("streaks = %+v", all.Streaks)
	}

	rec = doRequest(t, h, "GET", "/v1/status/"+agentA, nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var status model.AgentStatus
	decodeJSON(t, rec, &status)
	if status.Beat == nil || status.Beat.Slug != "btc-macro" || status.TotalSignals != 2 {
		t.Fatalf("status = %+v", status)
	}
	if status.CanFileSignal || status.WaitMinutes != 240 || status.Actions[0].Action != "wait" {
		t.Fatalf("filing state = %v %d %+v", status.CanFileSignal, status.WaitMinutes, status.Actions)
	}

	rec = doRequest(t, h, "GET", "/v1/status/bc1qnobeatnobeatnobeatnobeatnobeat", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	decodeJSON(t, rec, &status)
	if status.Beat != nil || status.Actions[0].Action != "claim-beat" {
		t.Fatalf("status = %+v", status)
	}

	rec = doRequest(t, h, "GET", "/v1/status/not-an-address", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestEarnings_Empty(t *testing.T) {
	_, _, h := newTestServer()
	rec := doRequest(t, h, "GET", "/v1/earnings/"+agentA, nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusOK)
	var e model.Earnings
	decodeJSON(t, rec, &e)
	if e.Total != 0 || e.Payments == nil {
		t.Fatalf("earnings = %+v", e)
	}
	rec = doRequest(t, h, "GET", "/v1/earnings/nope", nil, "10.0.0.9")
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestStatusFor(t *testing.T) {
	for kind, want := range map[model.ErrorKind]int{
		model.KindInvalidArgument: 400,
		model.KindUnauthenticated: 401,
		model.KindPaymentRequired: 402,
		model.KindForbidden:       403,
		model.KindNotFound:        404,
		model.KindConflict:        409,
		model.KindRateLimited:     429,
		model.KindUpstream:        502,
		model.KindInternal:        500,
	} {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestWriteDomainError_HidesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/beats", nil)
	writeDomainError(rec, req, errors.New("pq: connection refused"))
	requireStatus(t, rec, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "pq") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestCallerIP(t *testing.T) {
	for _, tc := range []struct {
		name, fwd, remote, want string
	}{
		{"Forwarded", "203.0.113.7, 10.0.0.1", "10.0.0.1:555", "203.0.113.7"},
		{"RemoteAddr", "", "192.0.2.4:555", "192.0.2.4"},
		{"NoPort", "", "192.0.2.4", "192.0.2.4"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			if tc.fwd != "" {
				req.Header.Set("X-Forwarded-For", tc.fwd)
			}
			if got := callerIP(req); got != tc.want {
				t.Fatalf("callerIP = %q, want %q", got, tc.want)
			}
		})
	}
}
