// Package brief compiles recent signals into a dated report and serves the
// archive of compiled briefs.
package brief

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
)

// Compilation bounds.
const (
	DefaultLookbackHours = 24
	MaxLookbackHours     = 168
	MinSignals           = 1
	FallbackSignals      = 10
)

const streakConcurrency = 16

// Beats lists registered beats as stored. *registry.Registry satisfies it.
type Beats interface {
	Stored(ctx context.Context) ([]*model.Beat, error)
}

// Feed returns the global signal feed, newest first. *ledger.Ledger satisfies it.
type Feed interface {
	Feed(ctx context.Context) ([]*model.Signal, error)
}

// Streaks resolves an agent's streak. *streak.Engine satisfies it.
type Streaks interface {
	Get(ctx context.Context, agent string) (*model.Streak, error)
}

// Compiler builds and stores briefs.
type Compiler struct {
	store     kv.Store
	index     *index.Index
	beats     Beats
	feed      Feed
	streaks   Streaks
	limiter   *ratelimit.Limiter
	publisher events.Publisher
	now       func() time.Time
}

// New returns a Compiler. A nil now uses the wall clock.
func New(store kv.Store, beats Beats, feed Feed, streaks Streaks, limiter *ratelimit.Limiter, publisher events.Publisher, now func() time.Time) *Compiler {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Compiler{
		store:     store,
		index:     index.New(store),
		beats:     beats,
		feed:      feed,
		streaks:   streaks,
		limiter:   limiter,
		publisher: publisher,
		now:       now,
	}
}

// CompileRequest is the input to Compile. Hours outside [1,168] is clamped;
// zero means the 24 hour default.
type CompileRequest struct {
	Requester string
	Signature string
	Hours     int
	CallerIP  string
}

// ClampHours normalizes a requested lookback window.
func ClampHours(h int) int {
	if h == 0 {
		return DefaultLookbackHours
	}
	return max(1, min(h, MaxLookbackHours))
}

// Compile builds today's brief from the current ledger and stores it,
// replacing any brief already compiled today.
func (c *Compiler) Compile(ctx context.Context, req CompileRequest) (*model.Brief, error) {
	if err := c.limiter.Enforce(ctx, ratelimit.CompilePolicy, req.CallerIP); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	date := model.DateOf(now)
	if req.Requester == "" || req.Signature == "" {
		return nil, model.Invalid("Missing required fields: btc_address, signature").
			WithHint(`Sign: "` + model.CompileMessage(date, "{btc_address}") + `"`)
	}
	if err := model.CheckAddress(req.Requester); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.CompileMessage(date, req.Requester)); err != nil {
		return nil, err
	}

	var (
		beats   []*model.Beat
		signals []*model.Signal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		beats, err = c.beats.Stored(gctx)
		return err
	})
	g.Go(func() (err error) {
		signals, err = c.feed.Feed(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !slices.ContainsFunc(beats, func(b *model.Beat) bool { return b.ClaimedBy == req.Requester }) {
		return nil, model.Forbidden("Only registered correspondents can compile briefs").
			WithHint("Claim a beat first via POST /v1/beats")
	}

	hours := ClampHours(req.Hours)
	selected := Select(signals, now, time.Duration(hours)*time.Hour)
	if len(selected) == 0 {
		return nil, model.NotFound("No signals to compile").
			WithHint("Agents need to file signals via POST /v1/signals before a brief can be compiled")
	}

	streaks, err := c.resolveStreaks(ctx, selected)
	if err != nil {
		return nil, err
	}

	b := Assemble(selected, beats, streaks)
	b.Date = date
	b.CompiledAt = now
	b.CompiledBy = req.Requester
	b.LookbackHours = hours
	b.Text = Render(b)

	if err := kv.PutJSON(ctx, c.store, kv.BriefKey(date), b, 0); err != nil {
		return nil, fmt.Errorf("save brief: %w", err)
	}
	if _, err := c.index.PrependUnique(ctx, kv.KeyBriefsIndex, date, index.BriefsCap); err != nil {
		return nil, fmt.Errorf("index brief: %w", err)
	}

	events.Emit(ctx, c.publisher, events.TopicBriefCompiled, events.BriefCompiled{
		Date: date, CompiledBy: b.CompiledBy, Summary: b.Summary,
	})
	return b, nil
}

// Select returns the signals filed within [now-window, now]. When fewer than
// MinSignals fall in the window it returns the FallbackSignals most recent
// signals instead. feed must be newest first.
func Select(feed []*model.Signal, now time.Time, window time.Duration) []*model.Signal {
	cutoff := now.Add(-window)
	var in []*model.Signal
	for _, s := range feed {
		if !s.Timestamp.Before(cutoff) && !s.Timestamp.After(now) {
			in = append(in, s)
		}
	}
	if len(in) >= MinSignals {
		return in
	}
	return feed[:min(len(feed), FallbackSignals)]
}

func (c *Compiler) resolveStreaks(ctx context.Context, signals []*model.Signal) (map[string]int, error) {
	var agents []string
	seen := make(map[string]bool)
	for _, s := range signals {
		if !seen[s.BTCAddress] {
			seen[s.BTCAddress] = true
			agents = append(agents, s.BTCAddress)
		}
	}

	current := make([]int, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(streakConcurrency)
	for i, agent := range agents {
		g.Go(func() error {
			st, err := c.streaks.Get(gctx, agent)
			if err != nil {
				return err
			}
			current[i] = st.Current
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(agents))
	for i, agent := range agents {
		out[agent] = current[i]
	}
	return out, nil
}

// Assemble groups signals by beat and produces the brief's sections and
// summary. Beats appear in order of their first signal in the input; within
// a beat, signals are newest first. The result depends only on its inputs.
func Assemble(signals []*model.Signal, beats []*model.Beat, streaks map[string]int) *model.Brief {
	bySlug := make(map[string]*model.Beat, len(beats))
	for _, b := range beats {
		bySlug[b.Slug] = b
	}

	var order []string
	groups := make(map[string][]*model.Signal)
	correspondents := make(map[string]struct{})
	for _, s := range signals {
		key := s.BeatSlug
		if key == "" {
			key = s.Beat
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
		correspondents[s.BTCAddress] = struct{}{}
	}

	sections := make([]model.Section, 0, len(signals))
	for _, key := range order {
		group := groups[key]
		slices.SortStableFunc(group, func(a, b *model.Signal) int {
			return b.Timestamp.Compare(a.Timestamp)
		})

		name, color := key, model.DefaultBeatColor
		if b, ok := bySlug[key]; ok {
			name, color = b.Name, b.Color
		}
		for _, s := range group {
			sections = append(sections, model.Section{
				Beat:               name,
				BeatSlug:           key,
				BeatColor:          color,
				Correspondent:      s.BTCAddress,
				CorrespondentShort: ShortAddress(s.BTCAddress),
				Streak:             streaks[s.BTCAddress],
				Timestamp:          s.Timestamp,
				Headline:           s.Headline,
				Content:            s.Content,
				Sources:            s.Sources,
				Tags:               s.Tags,
				SignalID:           s.ID,
			})
		}
	}

	return &model.Brief{
		Sections: sections,
		Summary: model.Summary{
			Correspondents:       len(correspondents),
			Beats:                len(order),
			Signals:              len(signals),
			TotalBeatsRegistered: len(beats),
		},
	}
}

// ShortAddress abbreviates addresses longer than 16 characters to the first
// 8 and last 6, joined by "...".
func ShortAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}
