// Package bounty runs the bounty board: agents post sats for coverage they
// want, other agents claim the work, and the creator moves the bounty
// through its lifecycle.
package bounty

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/idgen"
	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
	maxCreatorName   = 100
	readConcurrency  = 16
)

// Sort orders accepted by List.
const (
	SortNewest     = "newest"
	SortAmountHigh = "amount_high"
	SortAmountLow  = "amount_low"
)

// Board is the bounty board.
type Board struct {
	store     kv.Store
	index     *index.Index
	limiter   *ratelimit.Limiter
	publisher events.Publisher
	now       func() time.Time
}

// New returns a Board. A nil now uses the wall clock.
func New(store kv.Store, limiter *ratelimit.Limiter, publisher events.Publisher, now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Board{
		store:     store,
		index:     index.New(store),
		limiter:   limiter,
		publisher: publisher,
		now:       now,
	}
}

// CreateRequest is the input to Create. Timestamp is the signed request time
// and must be within model.BountyClockSkew of the server clock.
type CreateRequest struct {
	Creator     string
	CreatorName string
	Title       string
	Description string
	AmountSats  int64
	Tags        []string
	Skills      []string
	BeatSlug    string
	Deadline    *time.Time
	Timestamp   time.Time
	Signature   string
	CallerIP    string
}

// Create posts a new open bounty.
func (b *Board) Create(ctx context.Context, req CreateRequest) (*model.Bounty, error) {
	if err := b.limiter.Enforce(ctx, ratelimit.BountyPolicy, req.CallerIP); err != nil {
		return nil, err
	}

	if req.Creator == "" || req.Title == "" || req.Description == "" || req.Signature == "" || req.Timestamp.IsZero() {
		return nil, model.Invalid("Missing required fields: btc_address, title, description, amount_sats, signature, timestamp")
	}
	if err := model.CheckAddress(req.Creator); err != nil {
		return nil, err
	}
	ts := req.Timestamp.UTC().Format(time.RFC3339)
	if err := model.CheckSignature(req.Signature, model.CreateBountyMessage(req.Creator, ts)); err != nil {
		return nil, err
	}
	now := b.now().UTC()
	if skew := now.Sub(req.Timestamp); skew > model.BountyClockSkew || skew < -model.BountyClockSkew {
		return nil, model.Invalid("Timestamp too old or too far in future (must be within 5 minutes)")
	}

	title := model.Sanitize(req.Title, model.MaxBountyTitleLength)
	if len([]rune(title)) < model.MinBountyTitleLength {
		return nil, model.Invalid("Title too short (min %d chars, max %d)", model.MinBountyTitleLength, model.MaxBountyTitleLength)
	}
	desc := model.Sanitize(req.Description, model.MaxBountyDescriptionLength)
	if len([]rune(desc)) < model.MinBountyDescriptionLength {
		return nil, model.Invalid("Description too short (min %d chars, max %d)", model.MinBountyDescriptionLength, model.MaxBountyDescriptionLength)
	}
	if req.AmountSats < model.MinBountySats {
		return nil, model.Invalid("amount_sats must be an integer >= %d", model.MinBountySats)
	}
	tags, err := model.CheckBountyLabels("tags", req.Tags)
	if err != nil {
		return nil, err
	}
	skills, err := model.CheckBountyLabels("skills", req.Skills)
	if err != nil {
		return nil, err
	}
	slug := strings.ToLower(strings.TrimSpace(req.BeatSlug))
	if slug != "" && !model.ValidSlug(slug) {
		return nil, model.Invalid("Invalid beat_slug (a-z0-9 + hyphens, 3-50 chars)")
	}
	var deadline *time.Time
	if req.Deadline != nil {
		if !req.Deadline.After(now) {
			return nil, model.Invalid("deadline must be in the future")
		}
		d := req.Deadline.UTC()
		deadline = &d
	}

	id, err := idgen.BountyID(now)
	if err != nil {
		return nil, err
	}
	bounty := &model.Bounty{
		ID:          id,
		CreatorBTC:  req.Creator,
		CreatorName: model.Sanitize(req.CreatorName, maxCreatorName),
		Title:       title,
		Description: desc,
		AmountSats:  req.AmountSats,
		Tags:        tags,
		Skills:      skills,
		BeatSlug:    slug,
		Status:      model.BountyOpen,
		Deadline:    deadline,
		Signature:   req.Signature,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.save(ctx, bounty); err != nil {
		return nil, err
	}
	if _, err := b.index.Prepend(ctx, kv.KeyBountyIndex, id, index.BountyCap); err != nil {
		return nil, fmt.Errorf("index bounty: %w", err)
	}
	if _, err := b.index.Prepend(ctx, kv.CreatorBountiesKey(req.Creator), id, index.CreatorBountyCap); err != nil {
		return nil, fmt.Errorf("index creator bounty: %w", err)
	}
	if slug != "" {
		if _, err := b.index.Prepend(ctx, kv.BeatBountiesKey(slug), id, index.BeatBountyCap); err != nil {
			return nil, fmt.Errorf("index beat bounty: %w", err)
		}
	}

	events.Emit(ctx, b.publisher, events.TopicBountyCreated, events.BountyCreated{Bounty: bounty})
	return bounty, nil
}

// Filter selects bounties for List. Skills match when any one is listed on
// the bounty. Sort is newest (default), amount_high or amount_low.
type Filter struct {
	Status  model.BountyStatus
	Beat    string
	Creator string
	Skills  []string
	Sort    string
	Limit   int
	Offset  int
}

// Page is one page of matching bounties. Total counts every match.
type Page struct {
	Bounties []*model.Bounty `json:"bounties"`
	Total    int             `json:"total"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
}

// List returns the bounties matching f, sorted and paged.
func (b *Board) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, model.Invalid("Invalid status. Must be one of: %s", joinStatuses())
	}
	switch f.Sort {
	case "", SortNewest, SortAmountHigh, SortAmountLow:
	default:
		return nil, model.Invalid("Invalid sort. Must be one of: %s, %s, %s", SortNewest, SortAmountHigh, SortAmountLow)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(f.Offset, 0)

	key := kv.KeyBountyIndex
	switch {
	case f.Creator != "":
		key = kv.CreatorBountiesKey(f.Creator)
	case f.Beat != "":
		key = kv.BeatBountiesKey(strings.ToLower(f.Beat))
	}
	ids, err := b.index.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list bounties: %w", err)
	}
	all, err := b.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	matching := slices.DeleteFunc(all, func(x *model.Bounty) bool {
		switch {
		case f.Status != "" && x.Status != f.Status:
			return true
		case f.Beat != "" && x.BeatSlug != strings.ToLower(f.Beat):
			return true
		case f.Creator != "" && x.CreatorBTC != f.Creator:
			return true
		case len(f.Skills) > 0 && !x.HasSkill(f.Skills):
			return true
		}
		return false
	})
	switch f.Sort {
	case SortAmountHigh:
		sort.SliceStable(matching, func(i, j int) bool { return matching[i].AmountSats > matching[j].AmountSats })
	case SortAmountLow:
		sort.SliceStable(matching, func(i, j int) bool { return matching[i].AmountSats < matching[j].AmountSats })
	}

	page := &Page{Bounties: []*model.Bounty{}, Total: len(matching), Offset: offset, Limit: limit}
	if offset < len(matching) {
		page.Bounties = matching[offset:min(offset+limit, len(matching))]
	}
	return page, nil
}

// Get returns one bounty with its claims.
func (b *Board) Get(ctx context.Context, id string) (*model.BountyDetail, error) {
	bounty, err := b.mustLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	claims, err := b.claims(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.BountyDetail{Bounty: bounty, Claims: claims}, nil
}

// Stats counts every bounty on the board by status and sums their sats.
// Total is the index length, including entries whose record is gone.
func (b *Board) Stats(ctx context.Context) (*model.BountyStats, error) {
	ids, err := b.index.List(ctx, kv.KeyBountyIndex)
	if err != nil {
		return nil, fmt.Errorf("bounty stats: %w", err)
	}
	all, err := b.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	st := &model.BountyStats{Total: len(ids), ByStatus: make(map[model.BountyStatus]int, len(model.BountyStatuses))}
	for _, s := range model.BountyStatuses {
		st.ByStatus[s] = 0
	}
	for _, x := range all {
		if x.Status.IsValid() {
			st.ByStatus[x.Status]++
		}
		st.TotalSats += x.AmountSats
		if x.Status == model.BountyOpen {
			st.OpenSats += x.AmountSats
		}
	}
	return st, nil
}

// ClaimRequest is the input to Claim.
type ClaimRequest struct {
	ID        string
	Agent     string
	Note      string
	Signature string
	CallerIP  string
}

// Claim records that an agent is working on an open bounty. Several agents
// may claim the same bounty; each only once. The creator cannot claim.
func (b *Board) Claim(ctx context.Context, req ClaimRequest) (*model.BountyDetail, error) {
	if err := b.limiter.Enforce(ctx, ratelimit.BountyClaimPolicy, req.CallerIP); err != nil {
		return nil, err
	}
	if req.Agent == "" || req.Signature == "" {
		return nil, model.Invalid("Missing required fields: btc_address, signature")
	}
	if err := model.CheckAddress(req.Agent); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.ClaimBountyMessage(req.ID, req.Agent)); err != nil {
		return nil, err
	}

	bounty, err := b.mustLoad(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != model.BountyOpen {
		return nil, model.Conflict("Bounty %s is %s", bounty.ID, bounty.Status)
	}
	if bounty.CreatorBTC == req.Agent {
		return nil, model.Forbidden("Creators cannot claim their own bounty")
	}
	claims, err := b.claims(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if slices.ContainsFunc(claims, func(c model.BountyClaim) bool { return c.Agent == req.Agent }) {
		return nil, model.Conflict("Already claimed bounty %s", bounty.ID)
	}
	if len(claims) >= model.MaxBountyClaims {
		return nil, model.Conflict("Bounty %s has reached %d claims", bounty.ID, model.MaxBountyClaims)
	}

	now := b.now().UTC()
	claim := model.BountyClaim{Agent: req.Agent, Note: model.Sanitize(req.Note, model.MaxBountyNoteLength), ClaimedAt: now}
	claims = append(claims, claim)
	if err := kv.PutJSON(ctx, b.store, kv.BountyClaimsKey(bounty.ID), claims, 0); err != nil {
		return nil, fmt.Errorf("save bounty claims: %w", err)
	}
	bounty.ClaimCount = len(claims)
	bounty.UpdatedAt = now
	if err := b.save(ctx, bounty); err != nil {
		return nil, err
	}

	events.Emit(ctx, b.publisher, events.TopicBountyClaimed, events.BountyClaimed{ID: bounty.ID, Claim: claim})
	return &model.BountyDetail{Bounty: bounty, Claims: claims}, nil
}

// UpdateRequest is the input to UpdateStatus.
type UpdateRequest struct {
	ID        string
	Creator   string
	Status    model.BountyStatus
	Signature string
}

// UpdateStatus moves a bounty to a new status. Only the creator may, and
// completed or cancelled bounties are final.
func (b *Board) UpdateStatus(ctx context.Context, req UpdateRequest) (*model.Bounty, error) {
	if req.Creator == "" || req.Status == "" || req.Signature == "" {
		return nil, model.Invalid("Missing required fields: btc_address, status, signature")
	}
	if !req.Status.IsValid() {
		return nil, model.Invalid("Invalid status. Must be one of: %s", joinStatuses())
	}
	if err := model.CheckAddress(req.Creator); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.UpdateBountyMessage(req.ID, req.Creator)); err != nil {
		return nil, err
	}

	bounty, err := b.mustLoad(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if bounty.CreatorBTC != req.Creator {
		return nil, model.Forbidden("Only the creator can update this bounty")
	}
	if bounty.Status.IsFinal() {
		return nil, model.Conflict("Bounty %s is already %s", bounty.ID, bounty.Status)
	}
	if bounty.Status == req.Status {
		return bounty, nil
	}

	from := bounty.Status
	bounty.Status = req.Status
	bounty.UpdatedAt = b.now().UTC()
	if err := b.save(ctx, bounty); err != nil {
		return nil, err
	}
	events.Emit(ctx, b.publisher, events.TopicBountyUpdated, events.BountyUpdated{Bounty: bounty, From: from})
	return bounty, nil
}

func joinStatuses() string {
	s := make([]string, len(model.BountyStatuses))
	for i, st := range model.BountyStatuses {
		s[i] = string(st)
	}
	return strings.Join(s, ", ")
}

func (b *Board) mustLoad(ctx context.Context, id string) (*model.Bounty, error) {
	if !model.ValidBountyID(id) {
		return nil, model.Invalid("Invalid bounty ID format")
	}
	bounty, err := b.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if bounty == nil {
		return nil, model.NotFound("Bounty not found")
	}
	return bounty, nil
}

func (b *Board) claims(ctx context.Context, id string) ([]model.BountyClaim, error) {
	claims := []model.BountyClaim{}
	if _, err := kv.GetJSON(ctx, b.store, kv.BountyClaimsKey(id), &claims); err != nil {
		return nil, fmt.Errorf("load bounty claims: %w", err)
	}
	return claims, nil
}

func (b *Board) loadMany(ctx context.Context, ids []string) ([]*model.Bounty, error) {
	out := make([]*model.Bounty, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			x, err := b.load(gctx, id)
			out[i] = x
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.DeleteFunc(out, func(x *model.Bounty) bool { return x == nil }), nil
}

func (b *Board) load(ctx context.Context, id string) (*model.Bounty, error) {
	var x model.Bounty
	found, err := kv.GetJSON(ctx, b.store, kv.BountyKey(id), &x)
	if err != nil {
		return nil, fmt.Errorf("load bounty: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &x, nil
}

func (b *Board) save(ctx context.Context, x *model.Bounty) error {
	if err := kv.PutJSON(ctx, b.store, kv.BountyKey(x.ID), x, 0); err != nil {
		return fmt.Errorf("save bounty: %w", err)
	}
	return nil
}
