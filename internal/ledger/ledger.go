// Package ledger stores signals and maintains their four derived indexes:
// the global feed, per agent, per beat and per tag.
//
// A filing writes the signal, then each index, then the streak, as separate
// store operations. A failure part way leaves the earlier writes in place,
// and concurrent filings to a shared index are last-writer-wins.
package ledger

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/idgen"
	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
	"github.com/alfredjeanlab/newsdesk/internal/streak"
)

// FilingInterval is the minimum gap between two signals from one agent.
const FilingInterval = 4 * time.Hour

const (
	defaultListLimit = 50
	maxListLimit     = 100
	readConcurrency  = 16
)

// Beats resolves beats for the claimant check. *registry.Registry satisfies it.
type Beats interface {
	Peek(ctx context.Context, slug string) (*model.Beat, error)
}

// Ledger is the signal ledger.
type Ledger struct {
	*Activity
	store     kv.Store
	index     *index.Index
	beats     Beats
	streaks   *streak.Engine
	limiter   *ratelimit.Limiter
	publisher events.Publisher
	now       func() time.Time
}

// New returns a Ledger. A nil now uses the wall clock.
func New(store kv.Store, beats Beats, streaks *streak.Engine, limiter *ratelimit.Limiter, publisher events.Publisher, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Ledger{
		Activity:  NewActivity(store),
		store:     store,
		index:     index.New(store),
		beats:     beats,
		streaks:   streaks,
		limiter:   limiter,
		publisher: publisher,
		now:       now,
	}
}

// FileRequest is the input to File. Nil Headline, Sources and Tags mean the
// field was not supplied; supplied values must be valid.
type FileRequest struct {
	Agent     string
	Beat      string
	Content   string
	Signature string
	Headline  *string
	Sources   []model.Source
	Tags      []string
	CallerIP  string
}

// File records a new signal from the beat's claimant.
func (l *Ledger) File(ctx context.Context, req FileRequest) (*model.Signal, error) {
	if err := l.limiter.Enforce(ctx, ratelimit.FilePolicy, req.CallerIP); err != nil {
		return nil, err
	}

	if req.Agent == "" || strings.TrimSpace(req.Beat) == "" || req.Content == "" {
		return nil, model.Invalid("Missing required fields: btc_address, beat, content")
	}
	if err := model.CheckAddress(req.Agent); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.SubmitMessage(req.Beat, req.Agent)); err != nil {
		return nil, err
	}
	if req.Headline != nil {
		if err := model.CheckHeadline(*req.Headline); err != nil {
			return nil, err
		}
	}
	if req.Sources != nil {
		if err := model.CheckSources(req.Sources); err != nil {
			return nil, err
		}
	}
	if req.Tags != nil {
		if err := model.CheckTags(req.Tags); err != nil {
			return nil, err
		}
	}

	content := model.Sanitize(req.Content, model.MaxContentLength)
	if content == "" {
		return nil, model.Invalid("Content cannot be empty")
	}

	slug := model.SlugFromBeat(req.Beat)
	if !model.ValidSlug(slug) {
		return nil, model.Invalid("Invalid beat slug (a-z0-9 + hyphens, 3-50 chars)")
	}
	beat, err := l.beats.Peek(ctx, slug)
	if err != nil {
		return nil, err
	}
	if beat == nil {
		return nil, model.NotFound("Beat %q not found", req.Beat).WithHint("Claim it first via POST /v1/beats")
	}
	if beat.ClaimedBy != req.Agent {
		return nil, model.Forbidden("Beat %q is claimed by %s, not %s", req.Beat, beat.ClaimedBy, req.Agent)
	}

	now := l.now().UTC()
	if wait, err := l.filingWait(ctx, req.Agent, now); err != nil {
		return nil, err
	} else if wait > 0 {
		mins := int(math.Ceil(wait.Minutes()))
		return nil, model.RateLimited(wait, "Rate limited. Next signal allowed in %d minutes.", mins)
	}

	id, err := idgen.SignalID(now)
	if err != nil {
		return nil, err
	}
	sig := &model.Signal{
		ID:         id,
		BTCAddress: req.Agent,
		Beat:       beat.Name,
		BeatSlug:   slug,
		Content:    content,
		Sources:    req.Sources,
		Tags:       req.Tags,
		Timestamp:  now,
		Signature:  req.Signature,
	}
	if req.Headline != nil {
		sig.Headline = model.Sanitize(*req.Headline, model.MaxHeadlineLength)
	}

	if err := l.save(ctx, sig); err != nil {
		return nil, err
	}
	if err := l.fanOut(ctx, sig); err != nil {
		return nil, err
	}
	st, err := l.streaks.Update(ctx, req.Agent, now)
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, l.publisher, events.TopicSignalFiled, events.SignalFiled{Signal: sig, Streak: st})
	return sig, nil
}

// fanOut prepends the new ID to every index the signal belongs to.
func (l *Ledger) fanOut(ctx context.Context, sig *model.Signal) error {
	writes := []struct {
		key   string
		limit int
	}{
		{kv.KeyFeedIndex, index.FeedCap},
		{kv.AgentSignalsKey(sig.BTCAddress), index.AgentCap},
		{kv.BeatSignalsKey(sig.BeatSlug), index.BeatCap},
	}
	for _, w := range writes {
		if _, err := l.index.Prepend(ctx, w.key, sig.ID, w.limit); err != nil {
			return fmt.Errorf("index %s: %w", w.key, err)
		}
	}

	tags := slices.Compact(slices.Sorted(slices.Values(sig.Tags)))
	g, gctx := errgroup.WithContext(ctx)
	for _, tag := range tags {
		g.Go(func() error {
			if _, err := l.index.Prepend(gctx, kv.TagSignalsKey(tag), sig.ID, index.TagCap); err != nil {
				return fmt.Errorf("index tag %s: %w", tag, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// filingWait returns how long the agent must wait before filing at now.
func (l *Ledger) filingWait(ctx context.Context, agent string, now time.Time) (time.Duration, error) {
	last, ok, err := l.LastSignalAt(ctx, agent)
	if err != nil || !ok {
		return 0, err
	}
	if elapsed := now.Sub(last); elapsed < FilingInterval {
		return FilingInterval - elapsed, nil
	}
	return 0, nil
}

// NextFilingAt returns when the agent may next file, or the zero time if
// they may file now.
func (l *Ledger) NextFilingAt(ctx context.Context, agent string, now time.Time) (time.Time, error) {
	wait, err := l.filingWait(ctx, agent, now)
	if err != nil || wait == 0 {
		return time.Time{}, err
	}
	return now.Add(wait), nil
}

// CorrectRequest is the input to Correct.
type CorrectRequest struct {
	ID         string
	Author     string
	Correction string
	Signature  string
}

// Correct attaches the author's one correction to a signal. The original
// content is kept.
func (l *Ledger) Correct(ctx context.Context, req CorrectRequest) (*model.Signal, error) {
	if !model.ValidSignalID(req.ID) {
		return nil, model.Invalid("Invalid signal ID format")
	}
	if req.Author == "" || req.Correction == "" || req.Signature == "" {
		return nil, model.Invalid("Missing required fields: btc_address, correction, signature")
	}
	if err := model.CheckAddress(req.Author); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.CorrectMessage(req.ID, req.Author)); err != nil {
		return nil, err
	}
	correction := model.Sanitize(req.Correction, model.MaxCorrectionLength)
	if correction == "" {
		return nil, model.Invalid("Correction cannot be empty")
	}

	sig, err := l.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, model.NotFound("Signal not found")
	}
	if sig.BTCAddress != req.Author {
		return nil, model.Forbidden("Only the original author can correct this signal")
	}
	if sig.IsCorrected() {
		return nil, model.Conflict("Signal %s has already been corrected", sig.ID)
	}

	now := l.now().UTC()
	sig.Correction = correction
	sig.CorrectedAt = &now
	if err := l.save(ctx, sig); err != nil {
		return nil, err
	}

	events.Emit(ctx, l.publisher, events.TopicSignalCorrected, events.SignalCorrected{Signal: sig})
	return sig, nil
}

// Get returns one signal.
func (l *Ledger) Get(ctx context.Context, id string) (*model.Signal, error) {
	if !model.ValidSignalID(id) {
		return nil, model.Invalid("Invalid signal ID format")
	}
	sig, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, model.NotFound("Signal not found")
	}
	return sig, nil
}

// Filter selects signals for List. Beat, Agent and Tag combine; Limit
// defaults to 50 and is capped at 100.
type Filter struct {
	Beat  string
	Agent string
	Tag   string
	Limit int
}

// source picks the narrowest index f can be drawn from.
func (f Filter) source() string {
	switch {
	case f.Agent != "":
		return kv.AgentSignalsKey(f.Agent)
	case f.Beat != "":
		return kv.BeatSignalsKey(model.SlugFromBeat(f.Beat))
	case f.Tag != "":
		return kv.TagSignalsKey(f.Tag)
	}
	return kv.KeyFeedIndex
}

// narrowed reports whether the source index alone does not settle f.
func (f Filter) narrowed() bool {
	n := 0
	for _, v := range []string{f.Beat, f.Agent, f.Tag} {
		if v != "" {
			n++
		}
	}
	return n > 1
}

func (f Filter) matches(s *model.Signal) bool {
	if f.Agent != "" && s.BTCAddress != f.Agent {
		return false
	}
	if f.Beat != "" && s.Beat != f.Beat && s.BeatSlug != model.SlugFromBeat(f.Beat) {
		return false
	}
	if f.Tag != "" && !slices.Contains(s.Tags, f.Tag) {
		return false
	}
	return true
}

// List returns the newest signals matching f and the length of the index
// they were drawn from.
func (l *Ledger) List(ctx context.Context, f Filter) ([]*model.Signal, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	ids, err := l.index.List(ctx, f.source())
	if err != nil {
		return nil, 0, fmt.Errorf("list signals: %w", err)
	}
	total := len(ids)
	if !f.narrowed() && len(ids) > limit {
		ids = ids[:limit]
	}
	sigs, err := l.loadMany(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	if f.narrowed() {
		sigs = slices.DeleteFunc(sigs, func(s *model.Signal) bool { return !f.matches(s) })
		if len(sigs) > limit {
			sigs = sigs[:limit]
		}
	}
	return sigs, total, nil
}

// Feed returns every signal in the global feed, newest first.
func (l *Ledger) Feed(ctx context.Context) ([]*model.Signal, error) {
	ids, err := l.index.List(ctx, kv.KeyFeedIndex)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	return l.loadMany(ctx, ids)
}

// AgentSignals returns up to n of the agent's newest signals.
func (l *Ledger) AgentSignals(ctx context.Context, agent string, n int) ([]*model.Signal, error) {
	ids, err := l.index.List(ctx, kv.AgentSignalsKey(agent))
	if err != nil {
		return nil, fmt.Errorf("agent signals: %w", err)
	}
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}
	return l.loadMany(ctx, ids)
}

// loadMany reads signals in parallel, preserving order and skipping IDs whose
// record is missing (an index write that outlived a failed signal write).
func (l *Ledger) loadMany(ctx context.Context, ids []string) ([]*model.Signal, error) {
	out := make([]*model.Signal, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			s, err := l.load(gctx, id)
			out[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.DeleteFunc(out, func(s *model.Signal) bool { return s == nil }), nil
}

func (l *Ledger) load(ctx context.Context, id string) (*model.Signal, error) {
	var s model.Signal
	found, err := kv.GetJSON(ctx, l.store, kv.SignalKey(id), &s)
	if err != nil {
		return nil, fmt.Errorf("load signal: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

func (l *Ledger) save(ctx context.Context, s *model.Signal) error {
	if err := kv.PutJSON(ctx, l.store, kv.SignalKey(s.ID), s, 0); err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}
