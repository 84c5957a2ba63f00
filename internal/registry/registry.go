// Package registry manages beat claims: who may file against which slug.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	listConcurrency      = 16
)

// Activity reports when an agent last filed. The signal ledger implements it.
type Activity interface {
	// LastSignalAt returns the timestamp of the agent's most recent signal,
	// with ok=false when the agent has never filed.
	LastSignalAt(ctx context.Context, agent string) (at time.Time, ok bool, err error)
}

// Registry is the beat registry.
type Registry struct {
	store     kv.Store
	index     *index.Index
	limiter   *ratelimit.Limiter
	activity  Activity
	publisher events.Publisher
	now       func() time.Time
}

// New returns a Registry. A nil now uses the wall clock.
func New(store kv.Store, limiter *ratelimit.Limiter, activity Activity, publisher events.Publisher, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Registry{
		store:     store,
		index:     index.New(store),
		limiter:   limiter,
		activity:  activity,
		publisher: publisher,
		now:       now,
	}
}

// ClaimRequest is the input to Claim.
type ClaimRequest struct {
	Slug        string
	Name        string
	Description string
	Color       string
	Claimant    string
	Signature   string
	CallerIP    string
}

// Claim takes exclusive ownership of a slug. Claiming a slug whose beat has
// gone inactive succeeds and records the prior owner; reclaimed reports
// which case applied.
func (r *Registry) Claim(ctx context.Context, req ClaimRequest) (beat *model.Beat, reclaimed bool, err error) {
	if err := r.limiter.Enforce(ctx, ratelimit.ClaimPolicy, req.CallerIP); err != nil {
		return nil, false, err
	}

	if req.Claimant == "" || strings.TrimSpace(req.Name) == "" || req.Slug == "" {
		return nil, false, model.Invalid("Missing required fields: btc_address, name, slug")
	}
	if err := model.CheckAddress(req.Claimant); err != nil {
		return nil, false, err
	}
	if !model.ValidSlug(req.Slug) {
		return nil, false, model.Invalid("Invalid slug (a-z0-9 + hyphens, 3-50 chars)")
	}
	if req.Color != "" && !model.ValidHexColor(req.Color) {
		return nil, false, model.Invalid("Invalid color format (expected #RRGGBB)")
	}
	if err := model.CheckSignature(req.Signature, model.ClaimMessage(req.Slug, req.Claimant)); err != nil {
		return nil, false, err
	}

	existing, err := r.load(ctx, req.Slug)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing, err = r.CheckStaleness(ctx, existing, r.now()); err != nil {
			return nil, false, err
		}
		if existing.IsActive() {
			return nil, false, model.Conflict("Beat %q is already claimed by %s", req.Slug, existing.ClaimedBy)
		}
		reclaimed = true
	}

	color := req.Color
	if color == "" {
		color = model.DefaultBeatColor
	}
	beat = &model.Beat{
		Slug:        req.Slug,
		Name:        model.Sanitize(req.Name, maxNameLength),
		Description: model.Sanitize(req.Description, maxDescriptionLength),
		Color:       color,
		ClaimedBy:   req.Claimant,
		ClaimedAt:   r.now().UTC(),
		Status:      model.BeatActive,
		Signature:   req.Signature,
	}
	if reclaimed {
		beat.PreviousClaimant = existing.ClaimedBy
	}

	if err := r.save(ctx, beat); err != nil {
		return nil, false, err
	}
	if _, err := r.index.AppendUnique(ctx, kv.KeyBeatsIndex, beat.Slug); err != nil {
		return nil, false, fmt.Errorf("index beat: %w", err)
	}

	events.Emit(ctx, r.publisher, events.TopicBeatClaimed, events.BeatClaimed{Beat: beat, Reclaimed: reclaimed})
	return beat, reclaimed, nil
}

// UpdateRequest is the input to Update. Nil fields are left unchanged.
type UpdateRequest struct {
	Slug        string
	Claimant    string
	Description *string
	Color       *string
	Signature   string
}

// Update edits the description or color of a beat. Only its claimant may.
func (r *Registry) Update(ctx context.Context, req UpdateRequest) (*model.Beat, error) {
	if req.Claimant == "" || req.Slug == "" || req.Signature == "" {
		return nil, model.Invalid("Missing required fields: btc_address, slug, signature")
	}
	if err := model.CheckAddress(req.Claimant); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.UpdateBeatMessage(req.Slug, req.Claimant)); err != nil {
		return nil, err
	}

	beat, err := r.load(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	if beat == nil {
		return nil, model.NotFound("Beat %q not found", req.Slug)
	}
	if beat.ClaimedBy != req.Claimant {
		return nil, model.Forbidden("Only the claimant can update this beat")
	}

	changes := make(map[string]any)
	if req.Description != nil {
		beat.Description = model.Sanitize(*req.Description, maxDescriptionLength)
		changes["description"] = beat.Description
	}
	if req.Color != nil {
		if !model.ValidHexColor(*req.Color) {
			return nil, model.Invalid("Invalid color format (expected #RRGGBB)")
		}
		beat.Color = *req.Color
		changes["color"] = beat.Color
	}
	now := r.now().UTC()
	beat.Signature = req.Signature
	beat.UpdatedAt = &now

	if err := r.save(ctx, beat); err != nil {
		return nil, err
	}
	events.Emit(ctx, r.publisher, events.TopicBeatUpdated, events.BeatUpdated{Beat: beat, Changes: changes})
	return beat, nil
}

// IsStale reports whether a claim has lapsed: the claimant has filed at least
// once and their latest signal is older than model.BeatExpiry.
func IsStale(lastSignalAt time.Time, hasSignals bool, now time.Time) bool {
	if !hasSignals {
		return false
	}
	return lastSignalAt.Before(now.Add(-model.BeatExpiry))
}

// CheckStaleness flips an active beat to inactive, and persists it, when its
// claim has lapsed at now. Other beats are returned unchanged.
func (r *Registry) CheckStaleness(ctx context.Context, beat *model.Beat, now time.Time) (*model.Beat, error) {
	if !beat.IsActive() {
		return beat, nil
	}
	last, ok, err := r.activity.LastSignalAt(ctx, beat.ClaimedBy)
	if err != nil {
		return nil, fmt.Errorf("claimant activity: %w", err)
	}
	if !IsStale(last, ok, now) {
		if beat.Status == "" {
			beat.Status = model.BeatActive
		}
		return beat, nil
	}

	beat.Status = model.BeatInactive
	if err := r.save(ctx, beat); err != nil {
		return nil, err
	}
	events.Emit(ctx, r.publisher, events.TopicBeatInactive, events.BeatInactive{Slug: beat.Slug, ClaimedBy: beat.ClaimedBy})
	return beat, nil
}

// Get returns the beat for slug after the staleness check.
func (r *Registry) Get(ctx context.Context, slug string) (*model.Beat, error) {
	beat, err := r.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if beat == nil {
		return nil, model.NotFound("Beat %q not found", slug)
	}
	return r.CheckStaleness(ctx, beat, r.now())
}

// Peek returns the stored beat without the staleness check, or nil.
func (r *Registry) Peek(ctx context.Context, slug string) (*model.Beat, error) {
	return r.load(ctx, slug)
}

// List returns every registered beat in claim order, each staleness-checked.
func (r *Registry) List(ctx context.Context) ([]*model.Beat, error) {
	return r.list(ctx, true)
}

// Stored returns every registered beat as persisted, without the staleness
// check and its writes.
func (r *Registry) Stored(ctx context.Context) ([]*model.Beat, error) {
	return r.list(ctx, false)
}

func (r *Registry) list(ctx context.Context, checked bool) ([]*model.Beat, error) {
	slugs, err := r.index.List(ctx, kv.KeyBeatsIndex)
	if err != nil {
		return nil, fmt.Errorf("list beats: %w", err)
	}

	now := r.now()
	beats := make([]*model.Beat, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, slug := range slugs {
		g.Go(func() error {
			b, err := r.load(gctx, slug)
			if err != nil || b == nil {
				return err
			}
			if checked {
				if b, err = r.CheckStaleness(gctx, b, now); err != nil {
					return err
				}
			}
			beats[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*model.Beat, 0, len(beats))
	for _, b := range beats {
		if b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// ClaimedBy returns the beats whose current claimant is agent, in claim
// order. Inactive beats are included until someone reclaims them.
func (r *Registry) ClaimedBy(ctx context.Context, agent string) ([]*model.Beat, error) {
	beats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Beat
	for _, b := range beats {
		if b.ClaimedBy == agent {
			out = append(out, b)
		}
	}
	return out, nil
}

// Count returns the number of registered beats.
func (r *Registry) Count(ctx context.Context) (int, error) {
	slugs, err := r.index.List(ctx, kv.KeyBeatsIndex)
	return len(slugs), err
}

func (r *Registry) load(ctx context.Context, slug string) (*model.Beat, error) {
	var b model.Beat
	found, err := kv.GetJSON(ctx, r.store, kv.BeatKey(slug), &b)
	if err != nil {
		return nil, fmt.Errorf("load beat: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &b, nil
}

func (r *Registry) save(ctx context.Context, b *model.Beat) error {
	if err := kv.PutJSON(ctx, r.store, kv.BeatKey(b.Slug), b, 0); err != nil {
		return fmt.Errorf("save beat: %w", err)
	}
	return nil
}
