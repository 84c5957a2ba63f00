// Package streak tracks consecutive UTC calendar days on which an agent filed.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// Advance returns s updated for a filing at filedAt, and whether anything
// changed. A second filing on the same date is a no-op.
func Advance(s model.Streak, filedAt time.Time) (model.Streak, bool) {
	today := model.DateOf(filedAt)
	if s.LastDate == today {
		return s, false
	}

	yesterday := model.DateOf(filedAt.UTC().AddDate(0, 0, -1))
	if s.LastDate == yesterday {
		s.Current++
	} else {
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastDate = today

	history := make([]string, 0, len(s.History)+1)
	history = append(history, today)
	history = append(history, s.History...)
	if len(history) > model.MaxStreakHistory {
		history = history[:model.MaxStreakHistory]
	}
	s.History = history
	return s, true
}

// Engine persists streaks. Update is only called by the ledger after a
// signal has been stored.
type Engine struct {
	store kv.Store
}

// New returns an Engine over store.
func New(store kv.Store) *Engine {
	return &Engine{store: store}
}

// Get returns the agent's streak, or a zero streak if they never filed.
func (e *Engine) Get(ctx context.Context, agent string) (*model.Streak, error) {
	var s model.Streak
	if _, err := kv.GetJSON(ctx, e.store, kv.StreakKey(agent), &s); err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}
	s.Agent = agent
	if s.History == nil {
		s.History = []string{}
	}
	return &s, nil
}

// Update advances the agent's streak for a filing at filedAt.
func (e *Engine) Update(ctx context.Context, agent string, filedAt time.Time) (*model.Streak, error) {
	cur, err := e.Get(ctx, agent)
	if err != nil {
		return nil, err
	}
	next, changed := Advance(*cur, filedAt)
	if !changed {
		return cur, nil
	}
	if err := kv.PutJSON(ctx, e.store, kv.StreakKey(agent), next, 0); err != nil {
		return nil, fmt.Errorf("save streak: %w", err)
	}
	return &next, nil
}
