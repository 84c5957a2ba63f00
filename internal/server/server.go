package server

import (
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/archive"
	"github.com/alfredjeanlab/newsdesk/internal/bounty"
	"github.com/alfredjeanlab/newsdesk/internal/brief"
	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/ledger"
	"github.com/alfredjeanlab/newsdesk/internal/payment"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
	"github.com/alfredjeanlab/newsdesk/internal/registry"
	"github.com/alfredjeanlab/newsdesk/internal/revenue"
	"github.com/alfredjeanlab/newsdesk/internal/streak"
)

// Options configures a NewsServer beyond its store and publisher.
type Options struct {
	// PaidBriefs gates brief reads behind a settled payment.
	PaidBriefs bool
	PriceSats  int64
	ShareBPS   int64
	// Settler settles payment tokens. Required when PaidBriefs is set.
	Settler payment.Settler
	Asset   string
	PayTo   string

	// Archive backs the operator export route; nil disables it.
	Archive *archive.Scheduler

	// Now overrides the clock for every component.
	Now func() time.Time
}

// NewsServer wires the newsdesk components together and serves them.
type NewsServer struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	streaks  *streak.Engine
	briefs   *brief.Compiler
	revenue  *revenue.Ledger
	bounties *bounty.Board

	paid        bool
	settler     payment.Settler
	requirement payment.Requirement
	archive     *archive.Scheduler

	publisher events.Publisher
	sseHub    *sseHub
	now       func() time.Time
}

// NewNewsServer builds every component over store. Domain events go to p
// and to the server's SSE stream.
func NewNewsServer(store kv.Store, p events.Publisher, opts Options) *NewsServer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if p == nil {
		p = &events.NoopPublisher{}
	}
	hub := newSSEHub()
	pub := events.Multi{p, hub}

	limiter := ratelimit.New(store, now)
	streaks := streak.New(store)
	activity := ledger.NewActivity(store)
	reg := registry.New(store, limiter, activity, pub, now)
	led := ledger.New(store, reg, streaks, limiter, pub, now)

	return &NewsServer{
		registry: reg,
		ledger:   led,
		streaks:  streaks,
		briefs:   brief.New(store, reg, led, streaks, limiter, pub, now),
		revenue:  revenue.New(store, opts.PriceSats, opts.ShareBPS, pub, now),
		bounties: bounty.New(store, limiter, pub, now),
		paid:     opts.PaidBriefs,
		settler:  opts.Settler,
		requirement: payment.Requirement{
			Amount:      opts.PriceSats,
			Asset:       opts.Asset,
			PayTo:       opts.PayTo,
			Description: "Daily intelligence brief",
		},
		archive:   opts.Archive,
		publisher: pub,
		sseHub:    hub,
		now:       now,
	}
}
