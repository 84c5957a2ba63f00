// Package revenue splits paid brief revenue among the brief's correspondents.
package revenue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"golang.org/x/sync/errgroup"
)

// BasisPoints is the denominator of a revenue share.
const BasisPoints = 10000

// creditConcurrency bounds the parallel earnings writes of one settlement.
const creditConcurrency = 8

// Settlement describes one credited payment. Distributed is PerHead times
// the number of correspondents; the rest of Price is retained.
type Settlement struct {
	Date           string   `json:"date"`
	TxID           string   `json:"txid"`
	Price          int64    `json:"price"`
	Pool           int64    `json:"pool"`
	PerHead        int64    `json:"per_head"`
	Distributed    int64    `json:"distributed"`
	Correspondents []string `json:"correspondents"`
}

type paymentMarker struct {
	Date       string    `json:"date"`
	CreditedAt time.Time `json:"credited_at"`
}

// Ledger credits correspondents and serves earnings reads.
type Ledger struct {
	store     kv.Store
	price     int64
	shareBPS  int64
	publisher events.Publisher
	now       func() time.Time
}

// New returns a Ledger that pays out shareBPS/10000 of priceSats per brief.
func New(store kv.Store, priceSats, shareBPS int64, publisher events.Publisher, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, price: priceSats, shareBPS: shareBPS, publisher: publisher, now: now}
}

// Price returns the brief price in sats.
func (l *Ledger) Price() int64 { return l.price }

// Split computes the pool and per-correspondent amount for n correspondents.
func Split(price, shareBPS int64, n int) (pool, perHead int64) {
	pool = price * shareBPS / BasisPoints
	if n <= 0 {
		return pool, 0
	}
	return pool, pool / int64(n)
}

// Credit records a settled payment for brief b identified by txid. A txid can
// be credited only once; a failed Credit leaves no marker and may be retried.
// When the per-correspondent share rounds to zero no earnings are written.
func (l *Ledger) Credit(ctx context.Context, b *model.Brief, txid string) (*Settlement, error) {
	if txid == "" {
		return nil, model.Invalid("Missing payment txid")
	}
	var marker paymentMarker
	found, err := kv.GetJSON(ctx, l.store, kv.PaymentKey(txid), &marker)
	if err != nil {
		return nil, fmt.Errorf("load payment marker: %w", err)
	}
	if found {
		return nil, model.Conflict("Payment %s already credited", txid).
			WithHint("Each payment unlocks one brief read")
	}

	now := l.now()
	agents := b.Correspondents()
	pool, perHead := Split(l.price, l.shareBPS, len(agents))
	st := &Settlement{
		Date:           b.Date,
		TxID:           txid,
		Price:          l.price,
		Pool:           pool,
		PerHead:        perHead,
		Correspondents: agents,
	}
	if st.Correspondents == nil {
		st.Correspondents = []string{}
	}
	if perHead == 0 {
		if err := l.mark(ctx, txid, b.Date, now); err != nil {
			return nil, err
		}
		return st, nil
	}

	// Each correspondent owns a distinct earnings key.
	p := model.Payment{Date: now, Amount: perHead, TxID: txid}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(creditConcurrency)
	for _, agent := range agents {
		g.Go(func() error { return l.credit(gctx, agent, p) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	st.Distributed = perHead * int64(len(agents))

	// The marker goes last so a failed credit can be retried with the same
	// txid; credit skips agents that already hold it.
	if err := l.mark(ctx, txid, b.Date, now); err != nil {
		return nil, err
	}
	slog.Info("revenue credited", "date", b.Date, "txid", txid, "per_head", perHead, "correspondents", len(agents))

	events.Emit(ctx, l.publisher, events.TopicEarningsCredited, events.EarningsCredited{
		Date:           b.Date,
		TxID:           txid,
		PerHead:        perHead,
		Correspondents: agents,
	})
	return st, nil
}

func (l *Ledger) mark(ctx context.Context, txid, date string, now time.Time) error {
	if err := kv.PutJSON(ctx, l.store, kv.PaymentKey(txid), paymentMarker{Date: date, CreditedAt: now}, 0); err != nil {
		return fmt.Errorf("save payment marker: %w", err)
	}
	return nil
}

func (l *Ledger) credit(ctx context.Context, agent string, p model.Payment) error {
	e, err := l.Earnings(ctx, agent)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(e.Payments, func(q model.Payment) bool { return q.TxID == p.TxID }) {
		return nil
	}
	e.Total += p.Amount
	payments := append([]model.Payment{p}, e.Payments...)
	if len(payments) > model.MaxPayments {
		payments = payments[:model.MaxPayments]
	}
	e.Payments = payments
	if err := kv.PutJSON(ctx, l.store, kv.EarningsKey(agent), e, 0); err != nil {
		return fmt.Errorf("save earnings for %s: %w", agent, err)
	}
	return nil
}

// Earnings returns the agent's earnings, or an empty ledger.
func (l *Ledger) Earnings(ctx context.Context, agent string) (*model.Earnings, error) {
	var e model.Earnings
	if _, err := kv.GetJSON(ctx, l.store, kv.EarningsKey(agent), &e); err != nil {
		return nil, fmt.Errorf("load earnings: %w", err)
	}
	e.Agent = agent
	if e.Payments == nil {
		e.Payments = []model.Payment{}
	}
	return &e, nil
}
