package model

import "time"

// MaxPayments bounds the payment history kept per agent.
const MaxPayments = 100

// Payment is a single revenue credit.
type Payment struct {
	Date   time.Time `json:"date"`
	Amount int64     `json:"amount"`
	TxID   string    `json:"txid"`
}

// Earnings is an agent's revenue ledger. Total is the sum of every credit
// ever recorded, including ones evicted from Payments.
type Earnings struct {
	Agent    string    `json:"agent,omitempty"`
	Total    int64     `json:"total"`
	Payments []Payment `json:"payments"`
}

// RateLimitRecord is a fixed-window counter.
type RateLimitRecord struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}
