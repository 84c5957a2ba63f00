package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
	"github.com/alfredjeanlab/newsdesk/internal/registry"
	"github.com/alfredjeanlab/newsdesk/internal/streak"
)

const (
	alice = "bc1qalice0000000000000000000000000000000"
	bob   = "bc1qbob00000000000000000000000000000000"
	sig   = "c2lnbmF0dXJlLXByb29mLWJhc2U2NA=="
)

type harness struct {
	ledger  *Ledger
	reg     *registry.Registry
	streaks *streak.Engine
	store   *kv.Memory
	events  *events.Recorder
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  kv.NewMemory(),
		events: &events.Recorder{},
		now:    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	h.store.SetClock(clock)
	limiter := ratelimit.New(h.store, clock)
	h.streaks = streak.New(h.store)
	h.reg = registry.New(h.store, limiter, NewActivity(h.store), h.events, clock)
	h.ledger = New(h.store, h.reg, h.streaks, limiter, h.events, clock)
	return h
}

func (h *harness) claim(t *testing.T, slug, name, agent string) {
	t.Helper()
	_, _, err := h.reg.Claim(context.Background(), registry.ClaimRequest{
		Slug: slug, Name: name, Claimant: agent, Signature: sig, CallerIP: "claim-" + agent,
	})
	if err != nil {
		t.Fatalf("claim %s: %v", slug, err)
	}
}

// file files a signal from a fresh caller IP so the per-IP budget never interferes.
func (h *harness) file(agent, beat, content string, tags ...string) (*model.Signal, error) {
	req := FileRequest{
		Agent: agent, Beat: beat, Content: content, Signature: sig,
		CallerIP: fmt.Sprintf("ip-%d", h.now.UnixNano()),
	}
	if len(tags) > 0 {
		req.Tags = tags
	}
	return h.ledger.File(context.Background(), req)
}

func requireKind(t *testing.T, err error, kind model.ErrorKind) {
	t.Helper()
	if !model.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.claim(t, "bitcoin-macro", "Bitcoin Macro", alice)

	headline := "  ETF inflows hit record  "
	s, err := h.ledger.File(ctx, FileRequest{
		Agent:     alice,
		Beat:      "Bitcoin Macro",
		Content:   "  Spot ETFs took in 1.2B today.  ",
		Signature: sig,
		Headline:  &headline,
		Sources:   []model.Source{{URL: "https://example.com/etf", Title: "ETF tracker"}},
		Tags:      []string{"etf", "flows", "etf"},
		CallerIP:  "1.1.1.1",
	})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if !model.ValidSignalID(s.ID) {
		t.Errorf("ID %q has wrong shape", s.ID)
	}
	if s.Content != "Spot ETFs took in 1.2B today." || s.Headline != "ETF inflows hit record" {
		t.Errorf("content/headline not sanitized: %q / %q", s.Content, s.Headline)
	}
	if s.Beat != "Bitcoin Macro" || s.BeatSlug != "bitcoin-macro" {
		t.Errorf("beat = %q/%q", s.Beat, s.BeatSlug)
	}

	x := index.New(h.store)
	for _, key := range []string{
		kv.KeyFeedIndex,
		kv.AgentSignalsKey(alice),
		kv.BeatSignalsKey("bitcoin-macro"),
		kv.TagSignalsKey("etf"),
		kv.TagSignalsKey("flows"),
	} {
		ids, err := x.List(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 1 || ids[0] != s.ID {
			t.Errorf("%s = %v, want [%s]", key, ids, s.ID)
		}
	}

	st, _ := h.streaks.Get(ctx, alice)
	if st.Current != 1 || st.LastDate != "2026-02-01" {
		t.Errorf("streak = %+v", st)
	}

	got, err := h.ledger.Get(ctx, s.ID)
	if err != nil || got.Content != s.Content {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if h.events.Topics[len(h.events.Topics)-1] != events.TopicSignalFiled {
		t.Errorf("events = %v", h.events.Topics)
	}
}

func TestFile_Authorization(t *testing.T) {
	h := newHarness(t)
	h.claim(t, "ordinals", "Ordinals", alice)

	_, err := h.file(bob, "ordinals", "not my beat")
	requireKind(t, err, model.KindForbidden)

	_, err = h.file(alice, "unclaimed", "nobody here")
	requireKind(t, err, model.KindNotFound)
}

func TestFile_Validation(t *testing.T) {
	long := strings.Repeat("h", 121)
	for _, tc := range []struct {
		name string
		req  FileRequest
		kind model.ErrorKind
	}{
		{"MissingContent", FileRequest{Agent: alice, Beat: "ordinals", Signature: sig}, model.KindInvalidArgument},
		{"WhitespaceContent", FileRequest{Agent: alice, Beat: "ordinals", Content: "   ", Signature: sig}, model.KindInvalidArgument},
		{"BadAddress", FileRequest{Agent: "bc1", Beat: "ordinals", Content: "x", Signature: sig}, model.KindInvalidArgument},
		{"NoSignature", FileRequest{Agent: alice, Beat: "ordinals", Content: "x"}, model.KindUnauthenticated},
		{"LongHeadline", FileRequest{Agent: alice, Beat: "ordinals", Content: "x", Signature: sig, Headline: &long}, model.KindInvalidArgument},
		{"EmptySources", FileRequest{Agent: alice, Beat: "ordinals", Content: "x", Signature: sig, Sources: []model.Source{}}, model.KindInvalidArgument},
		{"BadTag", FileRequest{Agent: alice, Beat: "ordinals", Content: "x", Signature: sig, Tags: []string{"Bad Tag"}}, model.KindInvalidArgument},
		{"BadBeatSlug", FileRequest{Agent: alice, Beat: "x!", Content: "x", Signature: sig}, model.KindInvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.claim(t, "ordinals", "Ordinals", alice)
			_, err := h.ledger.File(context.Background(), tc.req)
			requireKind(t, err, tc.kind)
		})
	}
}

func TestFile_ContentTruncated(t *testing.T) {
	h := newHarness(t)
	h.claim(t, "ordinals", "Ordinals", alice)
	s, err := h.file(alice, "ordinals", strings.Repeat("é", model.MaxContentLength+50))
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(s.Content)); n != model.MaxContentLength {
		t.Errorf("content length = %d runes, want %d", n, model.MaxContentLength)
	}
}

func TestFile_FourHourGate(t *testing.T) {
	h := newHarness(t)
	h.claim(t, "ordinals", "Ordinals", alice)

	if _, err := h.file(alice, "ordinals", "first"); err != nil {
		t.Fatal(err)
	}

	h.now = h.now.Add(3*time.Hour + 59*time.Minute)
	_, err := h.file(alice, "ordinals", "too soon")
	requireKind(t, err, model.KindRateLimited)
	if e := err.(*model.Error); e.RetryAfter != time.Minute || !strings.Contains(e.Message, "1 minutes") {
		t.Errorf("rate limit error = %+v", e)
	}

	next, err := h.ledger.NextFilingAt(context.Background(), alice, h.now)
	if err != nil || !next.Equal(h.now.Add(time.Minute)) {
		t.Errorf("NextFilingAt = %v, %v", next, err)
	}

	h.now = h.now.Add(time.Minute)
	if _, err := h.file(alice, "ordinals", "on time"); err != nil {
		t.Fatalf("filing at T+4h: %v", err)
	}
	next, _ = h.ledger.NextFilingAt(context.Background(), alice, h.now.Add(FilingInterval))
	if !next.IsZero() {
		t.Errorf("NextFilingAt after interval = %v, want zero", next)
	}
}

func TestFile_FeedBound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Spread filings across agents so the 4-hour gate never applies.
	var first string
	for i := 0; i <= index.FeedCap; i++ {
		agent := fmt.Sprintf("bc1qagent%030d", i)
		slug := fmt.Sprintf("beat-%03d", i)
		h.claim(t, slug, slug, agent)
		s, err := h.file(agent, slug, "signal")
		if err != nil {
			t.Fatalf("file #%d: %v", i+1, err)
		}
		if i == 0 {
			first = s.ID
		}
		h.now = h.now.Add(time.Second)
	}

	ids, err := index.New(h.store).List(ctx, kv.KeyFeedIndex)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != index.FeedCap {
		t.Fatalf("feed length = %d, want %d", len(ids), index.FeedCap)
	}
	for _, id := range ids {
		if id == first {
			t.Fatal("oldest signal was not evicted")
		}
	}
	// The evicted signal record itself is retained.
	if _, err := h.ledger.Get(ctx, first); err != nil {
		t.Errorf("evicted signal record lost: %v", err)
	}
}

func TestCorrect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.claim(t, "ordinals", "Ordinals", alice)
	s, err := h.file(alice, "ordinals", "Inscriptions up 40%")
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.ledger.Correct(ctx, CorrectRequest{ID: s.ID, Author: bob, Correction: "nope", Signature: sig})
	requireKind(t, err, model.KindForbidden)

	got, err := h.ledger.Correct(ctx, CorrectRequest{ID: s.ID, Author: alice, Correction: "Up 14%, not 40%", Signature: sig})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Content != "Inscriptions up 40%" || got.Correction != "Up 14%, not 40%" || got.CorrectedAt == nil {
		t.Errorf("corrected signal = %+v", got)
	}

	_, err = h.ledger.Correct(ctx, CorrectRequest{ID: s.ID, Author: alice, Correction: "again", Signature: sig})
	requireKind(t, err, model.KindConflict)

	_, err = h.ledger.Correct(ctx, CorrectRequest{ID: "s_zzz_none", Author: alice, Correction: "x", Signature: sig})
	requireKind(t, err, model.KindNotFound)

	_, err = h.ledger.Correct(ctx, CorrectRequest{ID: "bogus", Author: alice, Correction: "x", Signature: sig})
	requireKind(t, err, model.KindInvalidArgument)
}

func TestList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.claim(t, "ordinals", "Ordinals", alice)
	h.claim(t, "mining", "Mining", bob)

	if _, err := h.file(alice, "ordinals", "a1", "runes"); err != nil {
		t.Fatal(err)
	}
	h.now = h.now.Add(time.Minute)
	if _, err := h.file(bob, "mining", "b1", "runes", "hashrate"); err != nil {
		t.Fatal(err)
	}
	h.now = h.now.Add(5 * time.Hour)
	if _, err := h.file(alice, "ordinals", "a2"); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name   string
		filter Filter
		want   string
	}{
		{"Feed", Filter{}, "a2,b1,a1"},
		{"Beat", Filter{Beat: "ordinals"}, "a2,a1"},
		{"Agent", Filter{Agent: bob}, "b1"},
		{"Tag", Filter{Tag: "runes"}, "b1,a1"},
		{"Limit", Filter{Limit: 2}, "a2,b1"},
		{"AgentAndTag", Filter{Agent: alice, Tag: "runes"}, "a1"},
		{"BeatAndTag", Filter{Beat: "mining", Tag: "runes"}, "b1"},
		{"BeatNameAndTag", Filter{Beat: "Ordinals", Tag: "runes"}, "a1"},
		{"AgentAndBeatDisjoint", Filter{Agent: bob, Beat: "ordinals"}, ""},
		{"AgentBeatTagLimit", Filter{Agent: bob, Beat: "mining", Tag: "hashrate", Limit: 1}, "b1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sigs, _, err := h.ledger.List(ctx, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, s := range sigs {
				got = append(got, s.Content)
			}
			if strings.Join(got, ",") != tc.want {
				t.Errorf("List = %v, want %s", got, tc.want)
			}
		})
	}

	_, total, _ := h.ledger.List(ctx, Filter{Limit: 1})
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	n, _ := h.ledger.CountByAgent(ctx, alice)
	if n != 2 {
		t.Errorf("CountByAgent = %d, want 2", n)
	}
}
