// Package payment settles x402 brief payments through an external relay.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// Protocol constants advertised in payment requirements.
const (
	Version = 2
	Scheme  = "exact"
	Network = "stacks:mainnet"
)

// Headers carrying the payment token and the settlement receipt.
const (
	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentAlt      = "Payment-Signature"
	HeaderPaymentRequired = "Payment-Required"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

// Requirement is the amount, asset and recipient a payment must satisfy.
type Requirement struct {
	Amount      int64
	Asset       string
	PayTo       string
	Description string
}

// Receipt identifies a settled payment.
type Receipt struct {
	Payer string `json:"payer"`
	TxID  string `json:"txid"`
}

// Settler settles a payment token against a requirement.
type Settler interface {
	Settle(ctx context.Context, token string, req Requirement) (*Receipt, error)
}

// Accept is one payment option in a 402 response.
type Accept struct {
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	PayTo       string `json:"payTo"`
	Description string `json:"description,omitempty"`
}

// Accepts is the x402 requirements envelope.
type Accepts struct {
	X402Version int      `json:"x402Version"`
	Accepts     []Accept `json:"accepts"`
}

// Challenge is the body returned with 402 Payment Required.
type Challenge struct {
	Error   string  `json:"error"`
	Message string  `json:"message"`
	PayTo   string  `json:"payTo"`
	Amount  int64   `json:"amount"`
	Asset   string  `json:"asset"`
	X402    Accepts `json:"x402"`
}

func (r Requirement) accept() Accept {
	return Accept{
		Scheme:      Scheme,
		Network:     Network,
		Amount:      strconv.FormatInt(r.Amount, 10),
		Asset:       r.Asset,
		PayTo:       r.PayTo,
		Description: r.Description,
	}
}

// Challenge builds the 402 body advertising r.
func (r Requirement) Challenge(message string) Challenge {
	return Challenge{
		Error:   "Payment Required",
		Message: message,
		PayTo:   r.PayTo,
		Amount:  r.Amount,
		Asset:   r.Asset,
		X402:    Accepts{X402Version: Version, Accepts: []Accept{r.accept()}},
	}
}

// EncodeHeader returns the base64 JSON form of r's requirements, for the
// Payment-Required header.
func (r Requirement) EncodeHeader() string {
	data, _ := json.Marshal(Accepts{X402Version: Version, Accepts: []Accept{r.accept()}})
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeReceipt returns the base64 JSON form of rc, for X-PAYMENT-RESPONSE.
func EncodeReceipt(rc *Receipt) string {
	data, _ := json.Marshal(rc)
	return base64.StdEncoding.EncodeToString(data)
}

// TokenFrom returns the payment token from either accepted header.
func TokenFrom(h http.Header) string {
	if t := strings.TrimSpace(h.Get(HeaderPayment)); t != "" {
		return t
	}
	return strings.TrimSpace(h.Get(HeaderPaymentAlt))
}

// RelayClient settles payments through an x402 relay over HTTP.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayClient creates a relay client. A nil httpClient gets a default
// with a 30s timeout.
func NewRelayClient(baseURL string, httpClient *http.Client) *RelayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type settleRequest struct {
	PaymentSignature    string `json:"paymentSignature"`
	PaymentRequirements Accept `json:"paymentRequirements"`
}

type settleResponse struct {
	Success bool   `json:"success"`
	Payer   string `json:"payer"`
	TxID    string `json:"txid"`
	Error   string `json:"error"`
}

// Settle posts token to the relay. A relay that declines the payment yields
// a PaymentRequired error; an unreachable or failing relay, or a success
// status with an unreadable body, yields Upstream.
func (c *RelayClient) Settle(ctx context.Context, token string, req Requirement) (*Receipt, error) {
	if token == "" {
		return nil, model.PaymentRequired("Missing payment token")
	}
	accept := req.accept()
	accept.Description = ""
	data, err := json.Marshal(settleRequest{PaymentSignature: token, PaymentRequirements: accept})
	if err != nil {
		return nil, fmt.Errorf("marshaling settle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/settle", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating settle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, model.Upstream("Settlement relay error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.Upstream("Settlement relay error: reading response: %v", err)
	}
	if resp.StatusCode >= 500 {
		return nil, model.Upstream("Settlement relay error: status %d", resp.StatusCode)
	}

	var out settleResponse
	decodeErr := json.Unmarshal(body, &out)
	if decodeErr != nil && resp.StatusCode < 400 {
		return nil, model.Upstream("Settlement relay returned an unreadable response: %v", decodeErr)
	}
	if resp.StatusCode >= 400 || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "payment settlement failed"
		}
		return nil, model.PaymentRequired("Payment settlement failed: %s", msg).
			WithHint("Ensure you paid the correct amount to the treasury address")
	}
	if out.TxID == "" {
		return nil, model.Upstream("Settlement relay returned no txid")
	}
	return &Receipt{Payer: out.Payer, TxID: out.TxID}, nil
}
