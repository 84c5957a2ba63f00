// Package archive snapshots the newsdesk records to JSONL and ships the
// snapshot to external destinations on a schedule.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	BeatCount   int       `json:"beat_count"`
	SignalCount int       `json:"signal_count"`
	BriefCount  int       `json:"brief_count"`
	AgentCount  int       `json:"agent_count"`
	BountyCount int       `json:"bounty_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Snapshot is everything an export contains.
type Snapshot struct {
	Beats    []*model.Beat
	Signals  []*model.Signal
	Briefs   []*model.Brief
	Streaks  []*model.Streak
	Earnings []*model.Earnings
	Bounties []*model.Bounty
}

// Collect reads a snapshot out of store. Signals are the ones still in the
// feed index; streaks and earnings are gathered for every agent that claimed
// a beat or filed a collected signal.
func Collect(ctx context.Context, store kv.Store) (*Snapshot, error) {
	idx := index.New(store)
	snap := &Snapshot{}
	agents := map[string]struct{}{}

	slugs, err := idx.List(ctx, kv.KeyBeatsIndex)
	if err != nil {
		return nil, fmt.Errorf("list beats: %w", err)
	}
	for _, slug := range slugs {
		var b model.Beat
		ok, err := kv.GetJSON(ctx, store, kv.BeatKey(slug), &b)
		if err != nil {
			return nil, fmt.Errorf("get beat %s: %w", slug, err)
		}
		if ok {
			snap.Beats = append(snap.Beats, &b)
			agents[b.ClaimedBy] = struct{}{}
		}
	}

	ids, err := idx.List(ctx, kv.KeyFeedIndex)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	for _, id := range ids {
		var s model.Signal
		ok, err := kv.GetJSON(ctx, store, kv.SignalKey(id), &s)
		if err != nil {
			return nil, fmt.Errorf("get signal %s: %w", id, err)
		}
		if ok {
			snap.Signals = append(snap.Signals, &s)
			agents[s.BTCAddress] = struct{}{}
		}
	}

	dates, err := idx.List(ctx, kv.KeyBriefsIndex)
	if err != nil {
		return nil, fmt.Errorf("list briefs: %w", err)
	}
	for _, date := range dates {
		var b model.Brief
		ok, err := kv.GetJSON(ctx, store, kv.BriefKey(date), &b)
		if err != nil {
			return nil, fmt.Errorf("get brief %s: %w", date, err)
		}
		if ok {
			snap.Briefs = append(snap.Briefs, &b)
		}
	}

	bounties, err := idx.List(ctx, kv.KeyBountyIndex)
	if err != nil {
		return nil, fmt.Errorf("list bounties: %w", err)
	}
	for _, id := range bounties {
		var b model.Bounty
		ok, err := kv.GetJSON(ctx, store, kv.BountyKey(id), &b)
		if err != nil {
			return nil, fmt.Errorf("get bounty %s: %w", id, err)
		}
		if ok {
			snap.Bounties = append(snap.Bounties, &b)
		}
	}

	names := make([]string, 0, len(agents))
	for a := range agents {
		names = append(names, a)
	}
	slices.Sort(names)
	for _, a := range names {
		var st model.Streak
		ok, err := kv.GetJSON(ctx, store, kv.StreakKey(a), &st)
		if err != nil {
			return nil, fmt.Errorf("get streak %s: %w", a, err)
		}
		if ok {
			st.Agent = a
			snap.Streaks = append(snap.Streaks, &st)
		}
		var e model.Earnings
		ok, err = kv.GetJSON(ctx, store, kv.EarningsKey(a), &e)
		if err != nil {
			return nil, fmt.Errorf("get earnings %s: %w", a, err)
		}
		if ok {
			e.Agent = a
			snap.Earnings = append(snap.Earnings, &e)
		}
	}

	slices.SortFunc(snap.Beats, func(a, b *model.Beat) int { return strings.Compare(a.Slug, b.Slug) })
	return snap, nil
}

// ExportJSONL writes a snapshot of store as JSONL to w: a header line, then
// beats (by slug), signals and briefs (newest first), streaks and earnings
// (by agent), then bounties (newest first).
func ExportJSONL(ctx context.Context, store kv.Store, w io.Writer, now time.Time) error {
	snap, err := Collect(ctx, store)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     "1",
		Type:        "header",
		Timestamp:   now.UTC(),
		BeatCount:   len(snap.Beats),
		SignalCount: len(snap.Signals),
		BriefCount:  len(snap.Briefs),
		AgentCount:  len(snap.Streaks),
		BountyCount: len(snap.Bounties),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, b := range snap.Beats {
		if err := enc.Encode(record{Type: "beat", Data: b}); err != nil {
			return fmt.Errorf("encode beat %s: %w", b.Slug, err)
		}
	}
	for _, s := range snap.Signals {
		if err := enc.Encode(record{Type: "signal", Data: s}); err != nil {
			return fmt.Errorf("encode signal %s: %w", s.ID, err)
		}
	}
	for _, b := range snap.Briefs {
		if err := enc.Encode(record{Type: "brief", Data: b}); err != nil {
			return fmt.Errorf("encode brief %s: %w", b.Date, err)
		}
	}
	for _, s := range snap.Streaks {
		if err := enc.Encode(record{Type: "streak", Data: s}); err != nil {
			return fmt.Errorf("encode streak %s: %w", s.Agent, err)
		}
	}
	for _, e := range snap.Earnings {
		if err := enc.Encode(record{Type: "earnings", Data: e}); err != nil {
			return fmt.Errorf("encode earnings %s: %w", e.Agent, err)
		}
	}
	for _, b := range snap.Bounties {
		if err := enc.Encode(record{Type: "bounty", Data: b}); err != nil {
			return fmt.Errorf("encode bounty %s: %w", b.ID, err)
		}
	}
	return nil
}
