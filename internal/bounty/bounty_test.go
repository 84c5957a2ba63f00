package bounty

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
)

const (
	alice = "bc1qalice0000000000000000000000000000000"
	bob   = "bc1qbob00000000000000000000000000000000"
	carol = "bc1qcarol0000000000000000000000000000000"
	sig   = "c2lnbmF0dXJlLXByb29mLWJhc2U2NA=="
)

type harness struct {
	board  *Board
	store  *kv.Memory
	events *events.Recorder
	now    time.Time
	ips    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  kv.NewMemory(),
		events: &events.Recorder{},
		now:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	h.store.SetClock(clock)
	h.board = New(h.store, ratelimit.New(h.store, clock), h.events, clock)
	return h
}

func (h *harness) ip() string {
	h.ips++
	return fmt.Sprintf("ip-%d", h.ips)
}

func (h *harness) request(creator, title string, sats int64) CreateRequest {
	return CreateRequest{
		Creator:     creator,
		Title:       title,
		Description: "Cover this story in depth please",
		AmountSats:  sats,
		Timestamp:   h.now,
		Signature:   sig,
		CallerIP:    h.ip(),
	}
}

func (h *harness) create(t *testing.T, req CreateRequest) *model.Bounty {
	t.Helper()
	b, err := h.board.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create %q: %v", req.Title, err)
	}
	h.now = h.now.Add(time.Second)
	return b
}

func requireKind(t *testing.T, err error, kind model.ErrorKind) {
	t.Helper()
	if !model.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestCreate(t *testing.T) {
	h := newHarness(t)
	req := h.request(alice, "  ETF flows weekly  ", 5000)
	req.Tags = []string{" etf "}
	req.Skills = []string{"Research"}
	req.BeatSlug = "Bitcoin-Macro"
	deadline := h.now.Add(72 * time.Hour)
	req.Deadline = &deadline

	b := h.create(t, req)
	if !model.ValidBountyID(b.ID) {
		t.Errorf("id = %q", b.ID)
	}
	if b.Title != "ETF flows weekly" || b.Status != model.BountyOpen || b.BeatSlug != "bitcoin-macro" {
		t.Errorf("bounty = %+v", b)
	}
	if len(b.Tags) != 1 || b.Tags[0] != "etf" {
		t.Errorf("tags = %v", b.Tags)
	}

	ctx := context.Background()
	for _, key := range []string{kv.KeyBountyIndex, kv.CreatorBountiesKey(alice), kv.BeatBountiesKey("bitcoin-macro")} {
		ids, err := h.board.index.List(ctx, key)
		if err != nil || len(ids) != 1 || ids[0] != b.ID {
			t.Errorf("%s = %v, %v", key, ids, err)
		}
	}
	if len(h.events.Topics) != 1 || h.events.Topics[0] != events.TopicBountyCreated {
		t.Errorf("topics = %v", h.events.Topics)
	}
}

func TestCreate_Validation(t *testing.T) {
	past := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name   string
		mutate func(h *harness, r *CreateRequest)
		kind   model.ErrorKind
	}{
		{"MissingTitle", func(_ *harness, r *CreateRequest) { r.Title = "" }, model.KindInvalidArgument},
		{"BadAddress", func(_ *harness, r *CreateRequest) { r.Creator = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT" }, model.KindInvalidArgument},
		{"BadSignature", func(_ *harness, r *CreateRequest) { r.Signature = "short" }, model.KindUnauthenticated},
		{"StaleTimestamp", func(h *harness, r *CreateRequest) { r.Timestamp = h.now.Add(-6 * time.Minute) }, model.KindInvalidArgument},
		{"FutureTimestamp", func(h *harness, r *CreateRequest) { r.Timestamp = h.now.Add(6 * time.Minute) }, model.KindInvalidArgument},
		{"ShortTitle", func(_ *harness, r *CreateRequest) { r.Title = "abcd" }, model.KindInvalidArgument},
		{"ShortDescription", func(_ *harness, r *CreateRequest) { r.Description = "too short" }, model.KindInvalidArgument},
		{"SmallAmount", func(_ *harness, r *CreateRequest) { r.AmountSats = 999 }, model.KindInvalidArgument},
		{"TooManySkills", func(_ *harness, r *CreateRequest) { r.Skills = strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",") }, model.KindInvalidArgument},
		{"LongTag", func(_ *harness, r *CreateRequest) { r.Tags = []string{strings.Repeat("x", 51)} }, model.KindInvalidArgument},
		{"BadBeat", func(_ *harness, r *CreateRequest) { r.BeatSlug = "-bad" }, model.KindInvalidArgument},
		{"PastDeadline", func(_ *harness, r *CreateRequest) { r.Deadline = &past }, model.KindInvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			req := h.request(alice, "Valid title here", 2000)
			tc.mutate(h, &req)
			_, err := h.board.Create(context.Background(), req)
			requireKind(t, err, tc.kind)
			if ids, _ := h.board.index.List(context.Background(), kv.KeyBountyIndex); len(ids) != 0 {
				t.Errorf("rejected bounty was indexed: %v", ids)
			}
		})
	}
}

func TestCreate_RateLimited(t *testing.T) {
	h := newHarness(t)
	for i := range ratelimit.BountyPolicy.Max {
		req := h.request(alice, fmt.Sprintf("Bounty number %d", i), 1000)
		req.CallerIP = "same"
		h.create(t, req)
	}
	req := h.request(alice, "One bounty too many", 1000)
	req.CallerIP = "same"
	_, err := h.board.Create(context.Background(), req)
	requireKind(t, err, model.KindRateLimited)
}

func TestList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r1 := h.request(alice, "Mining difficulty report", 3000)
	r1.BeatSlug = "mining"
	r1.Skills = []string{"data"}
	b1 := h.create(t, r1)

	r2 := h.request(bob, "Ordinals market recap", 8000)
	r2.BeatSlug = "ordinals"
	r2.Skills = []string{"Writing", "data"}
	b2 := h.create(t, r2)

	r3 := h.request(alice, "Lightning capacity digest", 1000)
	r3.Skills = []string{"research"}
	b3 := h.create(t, r3)

	if _, err := h.board.UpdateStatus(ctx, UpdateRequest{ID: b3.ID, Creator: alice, Status: model.BountyCancelled, Signature: sig}); err != nil {
		t.Fatal(err)
	}

	ids := func(bs []*model.Bounty) string {
		var out []string
		for _, b := range bs {
			switch b.ID {
			case b1.ID:
				out = append(out, "b1")
			case b2.ID:
				out = append(out, "b2")
			case b3.ID:
				out = append(out, "b3")
			}
		}
		return strings.Join(out, ",")
	}

	for _, tc := range []struct {
		name   string
		filter Filter
		want   string
		total  int
	}{
		{"Newest", Filter{}, "b3,b2,b1", 3},
		{"Status", Filter{Status: model.BountyOpen}, "b2,b1", 2},
		{"Beat", Filter{Beat: "mining"}, "b1", 1},
		{"Creator", Filter{Creator: alice}, "b3,b1", 2},
		{"CreatorAndStatus", Filter{Creator: alice, Status: model.BountyOpen}, "b1", 1},
		{"SkillsAnyCaseInsensitive", Filter{Skills: []string{"writing", "research"}}, "b3,b2", 2},
		{"AmountHigh", Filter{Sort: SortAmountHigh}, "b2,b1,b3", 3},
		{"AmountLow", Filter{Sort: SortAmountLow}, "b3,b1,b2", 3},
		{"Page", Filter{Limit: 1, Offset: 1}, "b2", 3},
		{"OffsetPastEnd", Filter{Offset: 10}, "", 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			page, err := h.board.List(ctx, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			if got := ids(page.Bounties); got != tc.want {
				t.Errorf("List = %s, want %s", got, tc.want)
			}
			if page.Total != tc.total {
				t.Errorf("Total = %d, want %d", page.Total, tc.total)
			}
		})
	}

	_, err := h.board.List(ctx, Filter{Status: "pending"})
	requireKind(t, err, model.KindInvalidArgument)
	_, err = h.board.List(ctx, Filter{Sort: "oldest"})
	requireKind(t, err, model.KindInvalidArgument)

	page, _ := h.board.List(ctx, Filter{Limit: 500})
	if page.Limit != maxListLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, maxListLimit)
	}
}

func TestClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.create(t, h.request(alice, "Hashrate derivatives explainer", 4000))

	claim := func(agent string) (*model.BountyDetail, error) {
		return h.board.Claim(ctx, ClaimRequest{ID: b.ID, Agent: agent, Note: "on it", Signature: sig, CallerIP: h.ip()})
	}

	d, err := claim(bob)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if d.ClaimCount != 1 || len(d.Claims) != 1 || d.Claims[0].Agent != bob || d.Claims[0].Note != "on it" {
		t.Errorf("detail = %+v", d)
	}
	if _, err := claim(carol); err != nil {
		t.Fatalf("second agent Claim: %v", err)
	}

	_, err = claim(bob)
	requireKind(t, err, model.KindConflict)
	_, err = claim(alice)
	requireKind(t, err, model.KindForbidden)

	got, err := h.board.Get(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ClaimCount != 2 || len(got.Claims) != 2 || got.Claims[1].Agent != carol {
		t.Errorf("Get = %+v", got)
	}

	if _, err := h.board.UpdateStatus(ctx, UpdateRequest{ID: b.ID, Creator: alice, Status: model.BountyCompleted, Signature: sig}); err != nil {
		t.Fatal(err)
	}
	_, err = claim("bc1qdave00000000000000000000000000000000")
	requireKind(t, err, model.KindConflict)
}

func TestGet_Errors(t *testing.T) {
	h := newHarness(t)
	_, err := h.board.Get(context.Background(), "bad id!")
	requireKind(t, err, model.KindInvalidArgument)
	_, err = h.board.Get(context.Background(), "lx1-abcdef-ghij")
	requireKind(t, err, model.KindNotFound)

	b := h.create(t, h.request(alice, "Fresh bounty no claims", 1000))
	d, err := h.board.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.Claims == nil || len(d.Claims) != 0 {
		t.Errorf("claims = %#v, want empty", d.Claims)
	}
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.create(t, h.request(alice, "Fee market weekly note", 2000))

	update := func(who string, st model.BountyStatus) (*model.Bounty, error) {
		return h.board.UpdateStatus(ctx, UpdateRequest{ID: b.ID, Creator: who, Status: st, Signature: sig})
	}

	_, err := update(bob, model.BountyClaimed)
	requireKind(t, err, model.KindForbidden)
	_, err = update(alice, "done")
	requireKind(t, err, model.KindInvalidArgument)

	got, err := update(alice, model.BountyClaimed)
	if err != nil || got.Status != model.BountyClaimed {
		t.Fatalf("update to claimed = %+v, %v", got, err)
	}
	if _, err := update(alice, model.BountyCompleted); err != nil {
		t.Fatal(err)
	}
	_, err = update(alice, model.BountyOpen)
	requireKind(t, err, model.KindConflict)

	want := []string{events.TopicBountyCreated, events.TopicBountyUpdated, events.TopicBountyUpdated}
	if strings.Join(h.events.Topics, ",") != strings.Join(want, ",") {
		t.Errorf("topics = %v, want %v", h.events.Topics, want)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, h.request(alice, "Open bounty number one", 1000))
	h.create(t, h.request(alice, "Open bounty number two", 2500))
	c := h.create(t, h.request(bob, "Soon to be cancelled", 4000))
	if _, err := h.board.UpdateStatus(ctx, UpdateRequest{ID: c.ID, Creator: bob, Status: model.BountyCancelled, Signature: sig}); err != nil {
		t.Fatal(err)
	}

	st, err := h.board.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.TotalSats != 7500 || st.OpenSats != 3500 {
		t.Errorf("stats = %+v", st)
	}
	if st.ByStatus[model.BountyOpen] != 2 || st.ByStatus[model.BountyCancelled] != 1 || st.ByStatus[model.BountyCompleted] != 0 {
		t.Errorf("by status = %v", st.ByStatus)
	}
	if _, ok := st.ByStatus[model.BountyClaimed]; !ok {
		t.Error("every status should be reported, even at zero")
	}
}
