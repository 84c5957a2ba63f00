package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered. When
// authToken is non-empty the operator routes require a matching
// Authorization: Bearer <token> header; every other route is open.
func (s *NewsServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/beats", s.handleListBeats)
	mux.HandleFunc("POST /v1/beats", s.handleClaimBeat)
	mux.HandleFunc("PATCH /v1/beats/{slug}", s.handleUpdateBeat)
	mux.HandleFunc("GET /v1/signals", s.handleListSignals)
	mux.HandleFunc("POST /v1/signals", s.handleFileSignal)
	mux.HandleFunc("GET /v1/signals/{id}", s.handleGetSignal)
	mux.HandleFunc("PATCH /v1/signals/{id}", s.handleCorrectSignal)
	mux.HandleFunc("GET /v1/streaks", s.handleStreaks)
	mux.HandleFunc("GET /v1/correspondents", s.handleCorrespondents)
	mux.HandleFunc("GET /v1/status/{address}", s.handleAgentStatus)
	mux.HandleFunc("GET /v1/earnings/{address}", s.handleEarnings)
	mux.HandleFunc("POST /v1/brief/compile", s.handleCompileBrief)
	mux.HandleFunc("GET /v1/brief", s.handleLatestBrief)
	mux.HandleFunc("GET /v1/brief/{date}", s.handleGetBrief)
	mux.HandleFunc("POST /v1/brief/{date}/inscribe", s.handleInscribeBrief)
	mux.HandleFunc("GET /v1/brief/{date}/inscription", s.handleGetInscription)
	mux.HandleFunc("GET /v1/briefs", s.handleListBriefs)
	mux.HandleFunc("GET /v1/bounties", s.handleListBounties)
	mux.HandleFunc("POST /v1/bounties", s.handleCreateBounty)
	mux.HandleFunc("GET /v1/bounties/stats", s.handleBountyStats)
	mux.HandleFunc("GET /v1/bounties/{id}", s.handleGetBounty)
	mux.HandleFunc("PATCH /v1/bounties/{id}", s.handleUpdateBounty)
	mux.HandleFunc("POST /v1/bounties/{id}/claims", s.handleClaimBounty)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("POST /v1/archive/export", AuthMiddleware(authToken, http.HandlerFunc(s.handleArchiveExport)))
	return RecoveryMiddleware(LoggingMiddleware(mux))
}

// handleHealth handles GET /v1/health.
func (s *NewsServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindPaymentRequired:
		return http.StatusPaymentRequired
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with the status its kind maps to. Unclassified
// errors are logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var e *model.Error
	if !errors.As(err, &e) {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if e.Kind == model.KindRateLimited && e.RetryAfter > 0 {
		secs := int((e.RetryAfter + 999_999_999) / 1_000_000_000)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, statusFor(e.Kind), errorBody{Error: e.Message, Hint: e.Hint})
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// callerIP is the rate-limit identity of a request: the first
// X-Forwarded-For entry, else the remote host.
func callerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// queryInt parses an integer query parameter, returning 0 when absent or
// malformed.
func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
