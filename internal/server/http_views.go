package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/newsdesk/internal/brief"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

const (
	statusSignalLimit = 5
	recentPayments    = 5
)

// handleStreaks handles GET /v1/streaks. With ?agent= it returns that
// agent's streak, otherwise the streak of every beat claimant.
func (s *NewsServer) handleStreaks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if agent := r.URL.Query().Get("agent"); agent != "" {
		st, err := s.streaks.Get(ctx, agent)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	agents, err := s.claimants(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]*model.Streak, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range agents {
		g.Go(func() error {
			st, err := s.streaks.Get(gctx, a)
			out[i] = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	byAgent := make(map[string]*model.Streak, len(out))
	for _, st := range out {
		byAgent[st.Agent] = st
	}
	writeJSON(w, http.StatusOK, map[string]any{"streaks": byAgent, "total": len(byAgent)})
}

// handleCorrespondents handles GET /v1/correspondents.
func (s *NewsServer) handleCorrespondents(w http.ResponseWriter, r *http.Request) {
	list, err := s.correspondents(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"correspondents": list, "total": len(list)})
}

// claimants returns the distinct beat claimants in beat-index order.
func (s *NewsServer) claimants(ctx context.Context) ([]string, error) {
	beats, err := s.registry.Stored(ctx)
	if err != nil {
		return nil, err
	}
	var agents []string
	for _, b := range beats {
		if !slices.Contains(agents, b.ClaimedBy) {
			agents = append(agents, b.ClaimedBy)
		}
	}
	return agents, nil
}

// correspondents builds the leaderboard of beat claimants, highest score
// first.
func (s *NewsServer) correspondents(ctx context.Context) ([]*model.Correspondent, error) {
	beats, err := s.registry.Stored(ctx)
	if err != nil {
		return nil, err
	}
	var order []string
	refs := map[string][]model.BeatRef{}
	for _, b := range beats {
		if _, ok := refs[b.ClaimedBy]; !ok {
			order = append(order, b.ClaimedBy)
		}
		status := b.Status
		if status == "" {
			status = model.BeatActive
		}
		refs[b.ClaimedBy] = append(refs[b.ClaimedBy], model.BeatRef{Slug: b.Slug, Name: b.Name, Status: status})
	}

	out := make([]*model.Correspondent, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, addr := range order {
		g.Go(func() error {
			c, err := s.correspondent(gctx, addr, refs[addr])
			out[i] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *model.Correspondent) int { return b.Score - a.Score })
	return out, nil
}

func (s *NewsServer) correspondent(ctx context.Context, addr string, beats []model.BeatRef) (*model.Correspondent, error) {
	count, err := s.ledger.CountByAgent(ctx, addr)
	if err != nil {
		return nil, err
	}
	st, err := s.streaks.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	earn, err := s.revenue.Earnings(ctx, addr)
	if err != nil {
		return nil, err
	}
	days := len(st.History)
	payments := earn.Payments
	if len(payments) > recentPayments {
		payments = payments[:recentPayments]
	}
	return &model.Correspondent{
		Address:       addr,
		AddressShort:  brief.ShortAddress(addr),
		Beats:         beats,
		SignalCount:   count,
		Streak:        st.Current,
		LongestStreak: st.Longest,
		DaysActive:    days,
		LastActive:    st.LastDate,
		Score:         model.CorrespondentScore(count, st.Current, days),
		Earnings:      model.EarningsSummary{Total: earn.Total, RecentPayments: payments},
	}, nil
}

// handleAgentStatus handles GET /v1/status/{address}.
func (s *NewsServer) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !model.ValidBTCAddress(addr) {
		writeDomainError(w, r, model.Invalid("Invalid BTC address").WithHint("Expected bech32 bc1... address"))
		return
	}
	st, err := s.agentStatus(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *NewsServer) agentStatus(ctx context.Context, addr string) (*model.AgentStatus, error) {
	now := s.now()
	out := &model.AgentStatus{Address: addr, CanFileSignal: true}

	var (
		beats []*model.Beat
		next  time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		beats, err = s.registry.ClaimedBy(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		out.Signals, err = s.ledger.AgentSignals(gctx, addr, statusSignalLimit)
		return err
	})
	g.Go(func() (err error) {
		out.TotalSignals, err = s.ledger.CountByAgent(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		out.Streak, err = s.streaks.Get(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		next, err = s.ledger.NextFilingAt(gctx, addr, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.Signals == nil {
		out.Signals = []*model.Signal{}
	}
	if len(beats) > 0 {
		out.Beat = beats[0]
		out.BeatStatus = model.BeatActive
		if !out.Beat.IsActive() {
			out.BeatStatus = model.BeatInactive
		}
	}
	if !next.IsZero() && next.After(now) {
		out.CanFileSignal = false
		out.WaitMinutes = int(math.Ceil(next.Sub(now).Minutes()))
	}

	switch {
	case out.Beat == nil:
		out.Actions = append(out.Actions, model.Action{
			Action:      "claim-beat",
			Description: "You have no beat. Claim one to start filing signals.",
			Method:      "POST /v1/beats",
			Hint:        "GET /v1/beats to see what's taken",
		})
	case out.CanFileSignal:
		out.Actions = append(out.Actions, model.Action{
			Action:      "file-signal",
			Description: fmt.Sprintf("File a signal on your %q beat", out.Beat.Name),
			Method:      "POST /v1/signals",
			Body: map[string]any{
				"btc_address": addr,
				"beat":        out.Beat.Slug,
				"content":     "(your intelligence here)",
				"signature":   fmt.Sprintf("Sign: %q", model.SubmitMessage(out.Beat.Slug, addr)),
			},
		})
	default:
		at := next.UTC()
		out.Actions = append(out.Actions, model.Action{
			Action:      "wait",
			Description: fmt.Sprintf("Next signal allowed in %d minutes", out.WaitMinutes),
			CanFileAt:   &at,
		})
	}
	if out.Streak.Current > 0 && out.Streak.LastDate != model.DateOf(now) && out.CanFileSignal {
		out.Actions = append(out.Actions, model.Action{
			Action:      "maintain-streak",
			Description: fmt.Sprintf("File today to extend your %d-day streak", out.Streak.Current),
			Priority:    "high",
		})
	}
	return out, nil
}

// handleEarnings handles GET /v1/earnings/{address}.
func (s *NewsServer) handleEarnings(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !model.ValidBTCAddress(addr) {
		writeDomainError(w, r, model.Invalid("Invalid BTC address").WithHint("Expected bech32 bc1... address"))
		return
	}
	e, err := s.revenue.Earnings(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
