package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/index"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// Activity answers per-agent questions from the agent index alone. It has
// no dependency on the registry, so the registry can use it for staleness.
type Activity struct {
	store kv.Store
	index *index.Index
}

// NewActivity returns an Activity reader over store.
func NewActivity(store kv.Store) *Activity {
	return &Activity{store: store, index: index.New(store)}
}

// LastSignalAt returns the timestamp of the agent's newest signal.
func (a *Activity) LastSignalAt(ctx context.Context, agent string) (time.Time, bool, error) {
	head, err := a.index.Head(ctx, kv.AgentSignalsKey(agent))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("agent index: %w", err)
	}
	if head == "" {
		return time.Time{}, false, nil
	}
	var s model.Signal
	found, err := kv.GetJSON(ctx, a.store, kv.SignalKey(head), &s)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return s.Timestamp, true, nil
}

// CountByAgent returns how many signals the agent index holds (at most
// index.AgentCap).
func (a *Activity) CountByAgent(ctx context.Context, agent string) (int, error) {
	ids, err := a.index.List(ctx, kv.AgentSignalsKey(agent))
	return len(ids), err
}
