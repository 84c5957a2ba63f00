package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/archive"
	"github.com/alfredjeanlab/newsdesk/internal/brief"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/payment"
)

// HTTPClient implements NewsClient using the newsdesk HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Beats ---

func (c *HTTPClient) ListBeats(ctx context.Context) (*ListBeatsResponse, error) {
	var resp ListBeatsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/beats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ClaimBeat(ctx context.Context, req *ClaimBeatRequest) (*ClaimBeatResponse, error) {
	var resp ClaimBeatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/beats", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateBeat(ctx context.Context, slug string, req *UpdateBeatRequest) (*model.Beat, error) {
	var beat model.Beat
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/beats/"+url.PathEscape(slug), req, &beat); err != nil {
		return nil, err
	}
	return &beat, nil
}

// --- Signals ---

func (c *HTTPClient) ListSignals(ctx context.Context, req *ListSignalsRequest) (*ListSignalsResponse, error) {
	q := url.Values{}
	if req.Beat != "" {
		q.Set("beat", req.Beat)
	}
	if req.Agent != "" {
		q.Set("agent", req.Agent)
	}
	if req.Tag != "" {
		q.Set("tag", req.Tag)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	path := "/v1/signals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListSignalsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	var sig model.Signal
	if err := c.doJSON(ctx, http.MethodGet, "/v1/signals/"+url.PathEscape(id), nil, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (c *HTTPClient) FileSignal(ctx context.Context, req *FileSignalRequest) (*model.Signal, error) {
	var sig model.Signal
	if err := c.doJSON(ctx, http.MethodPost, "/v1/signals", req, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (c *HTTPClient) CorrectSignal(ctx context.Context, id string, req *CorrectSignalRequest) (*model.Signal, error) {
	var sig model.Signal
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/signals/"+url.PathEscape(id), req, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// --- Briefs ---

func (c *HTTPClient) CompileBrief(ctx context.Context, req *CompileBriefRequest) (*model.Brief, error) {
	var b model.Brief
	if err := c.doJSON(ctx, http.MethodPost, "/v1/brief/compile", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func briefPath(opts BriefOptions) string {
	if opts.Date == "" {
		return "/v1/brief"
	}
	return "/v1/brief/" + url.PathEscape(opts.Date)
}

func paymentHeader(opts BriefOptions) http.Header {
	h := http.Header{}
	if opts.PaymentToken != "" {
		h.Set(payment.HeaderPayment, opts.PaymentToken)
	}
	return h
}

func (c *HTTPClient) GetBrief(ctx context.Context, opts BriefOptions) (*BriefResponse, error) {
	data, err := c.do(ctx, http.MethodGet, briefPath(opts), nil, paymentHeader(opts))
	if err != nil {
		return nil, err
	}
	var resp BriefResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) GetBriefText(ctx context.Context, opts BriefOptions) (string, error) {
	data, err := c.do(ctx, http.MethodGet, briefPath(opts)+"?format=text", nil, paymentHeader(opts))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *HTTPClient) ListBriefs(ctx context.Context) ([]string, error) {
	var resp struct {
		Briefs []string `json:"briefs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/briefs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Briefs, nil
}

func (c *HTTPClient) InscribeBrief(ctx context.Context, date string, req *InscribeBriefRequest) (*InscribeBriefResponse, error) {
	var resp InscribeBriefResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/brief/"+url.PathEscape(date)+"/inscribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetInscription(ctx context.Context, date string) (*brief.InscriptionStatus, error) {
	var st brief.InscriptionStatus
	if err := c.doJSON(ctx, http.MethodGet, "/v1/brief/"+url.PathEscape(date)+"/inscription", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// --- Views ---

// ListBounties lists bounties matching req.
func (c *HTTPClient) ListBounties(ctx context.Context, req *ListBountiesRequest) (*ListBountiesResponse, error) {
	q := url.Values{}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.Beat != "" {
		q.Set("beat", req.Beat)
	}
	if req.Creator != "" {
		q.Set("creator", req.Creator)
	}
	if len(req.Skills) > 0 {
		q.Set("skills", strings.Join(req.Skills, ","))
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/bounties"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListBountiesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBounty fetches one bounty with its claims.
func (c *HTTPClient) GetBounty(ctx context.Context, id string) (*model.BountyDetail, error) {
	var d model.BountyDetail
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bounties/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) CreateBounty(ctx context.Context, req *CreateBountyRequest) (*model.Bounty, error) {
	var b model.Bounty
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bounties", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) ClaimBounty(ctx context.Context, id string, req *ClaimBountyRequest) (*model.BountyDetail, error) {
	var d model.BountyDetail
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bounties/"+url.PathEscape(id)+"/claims", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) UpdateBounty(ctx context.Context, id string, req *UpdateBountyRequest) (*model.Bounty, error) {
	var b model.Bounty
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/bounties/"+url.PathEscape(id), req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BountyStats fetches board-wide totals.
func (c *HTTPClient) BountyStats(ctx context.Context) (*model.BountyStats, error) {
	var st model.BountyStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bounties/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) GetStreak(ctx context.Context, agent string) (*model.Streak, error) {
	var st model.Streak
	if err := c.doJSON(ctx, http.MethodGet, "/v1/streaks?agent="+url.QueryEscape(agent), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) ListStreaks(ctx context.Context) (map[string]*model.Streak, error) {
	var resp struct {
		Streaks map[string]*model.Streak `json:"streaks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/streaks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Streaks, nil
}

func (c *HTTPClient) ListCorrespondents(ctx context.Context) ([]*model.Correspondent, error) {
	var resp struct {
		Correspondents []*model.Correspondent `json:"correspondents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/correspondents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Correspondents, nil
}

func (c *HTTPClient) AgentStatus(ctx context.Context, address string) (*model.AgentStatus, error) {
	var st model.AgentStatus
	if err := c.doJSON(ctx, http.MethodGet, "/v1/status/"+url.PathEscape(address), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) GetEarnings(ctx context.Context, address string) (*model.Earnings, error) {
	var e model.Earnings
	if err := c.doJSON(ctx, http.MethodGet, "/v1/earnings/"+url.PathEscape(address), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Watch streams domain events to fn until ctx is done, the server closes
// the stream, or fn returns an error. Topics are glob patterns such as
// "newsdesk.signal.*"; lastEventID resumes after a previously seen event.
func (c *HTTPClient) Watch(ctx context.Context, topics []string, lastEventID string, fn func(Event) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp, body)
	}

	var evt Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if evt.Topic != "" {
				if err := fn(evt); err != nil {
					return err
				}
			}
			evt = Event{}
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "id:"):
			evt.ID = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			evt.Data = append(evt.Data, strings.TrimPrefix(line, "data:")...)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

// --- System ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) ExportArchive(ctx context.Context) (*archive.Result, error) {
	var res archive.Result
	if err := c.doJSON(ctx, http.MethodPost, "/v1/archive/export", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Hint       string
	// RetryAfter is the Retry-After header of a 429, in seconds.
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func apiError(resp *http.Response, body []byte) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	e.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))

	var errResp struct {
		Error   string `json:"error"`
		Hint    string `json:"hint"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		e.Message = errResp.Error
		e.Hint = errResp.Hint
		if e.Hint == "" {
			e.Hint = errResp.Message
		}
	}
	return e
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do performs an HTTP request and returns the raw response body, or an
// *APIError for status codes of 400 and above.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, header http.Header) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apiError(resp, respBody)
	}
	return respBody, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	respBody, err := c.do(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
