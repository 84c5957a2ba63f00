// Package ratelimit is a fixed-window counter keyed by (action, caller).
//
// It is advisory: two concurrent calls may read the same count and both be
// admitted. It deters abuse; it is not a security boundary.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// Policy is a request budget per window.
type Policy struct {
	Action string
	Max    int
	Window time.Duration
}

// Per-IP policies for the write paths.
var (
	ClaimPolicy       = Policy{Action: "beats", Max: 5, Window: time.Hour}
	FilePolicy        = Policy{Action: "signals", Max: 10, Window: time.Hour}
	CompilePolicy     = Policy{Action: "brief-compile", Max: 3, Window: time.Hour}
	InscribePolicy    = Policy{Action: "brief-inscribe", Max: 5, Window: time.Hour}
	BountyPolicy      = Policy{Action: "bounties", Max: 5, Window: time.Hour}
	BountyClaimPolicy = Policy{Action: "bounty-claims", Max: 10, Window: time.Hour}
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // whole seconds; zero when allowed
}

// Limiter checks and records attempts.
type Limiter struct {
	store kv.Store
	now   func() time.Time
}

// New returns a Limiter persisting counters in store.
func New(store kv.Store, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, now: now}
}

// Check counts one attempt against (action, caller). The updated record is
// persisted whether or not the attempt is allowed, so denied attempts count
// too.
func (l *Limiter) Check(ctx context.Context, action, caller string, max int, window time.Duration) (Decision, error) {
	key := kv.RateLimitKey(action, caller)
	now := l.now()

	var rec model.RateLimitRecord
	found, err := kv.GetJSON(ctx, l.store, key, &rec)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", action, err)
	}
	if !found || !now.Before(rec.ResetAt) {
		rec = model.RateLimitRecord{Count: 1, ResetAt: now.Add(window)}
	} else {
		rec.Count++
	}

	if err := kv.PutJSON(ctx, l.store, key, rec, window); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", action, err)
	}

	if rec.Count > max {
		secs := math.Ceil(rec.ResetAt.Sub(now).Seconds())
		return Decision{RetryAfter: time.Duration(secs) * time.Second}, nil
	}
	return Decision{Allowed: true}, nil
}

// Enforce applies policy p to caller and converts a deny into a
// model.RateLimited error.
func (l *Limiter) Enforce(ctx context.Context, p Policy, caller string) error {
	d, err := l.Check(ctx, p.Action, caller, p.Max, p.Window)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return model.RateLimited(d.RetryAfter, "Rate limited. Try again in %ds", int(d.RetryAfter.Seconds()))
	}
	return nil
}
