package events

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/newsdesk/internal/model"
)

// Event topic constants
const (
	TopicBeatClaimed  = "newsdesk.beat.claimed"
	TopicBeatUpdated  = "newsdesk.beat.updated"
	TopicBeatInactive = "newsdesk.beat.inactive"

	TopicSignalFiled     = "newsdesk.signal.filed"
	TopicSignalCorrected = "newsdesk.signal.corrected"

	TopicBriefCompiled  = "newsdesk.brief.compiled"
	TopicBriefInscribed = "newsdesk.brief.inscribed"

	TopicEarningsCredited = "newsdesk.earnings.credited"

	TopicBountyCreated = "newsdesk.bounty.created"
	TopicBountyClaimed = "newsdesk.bounty.claimed"
	TopicBountyUpdated = "newsdesk.bounty.updated"
)

// Event types

type BeatClaimed struct {
	Beat      *model.Beat `json:"beat"`
	Reclaimed bool        `json:"reclaimed,omitempty"`
}

type BeatUpdated struct {
	Beat    *model.Beat    `json:"beat"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type BeatInactive struct {
	Slug      string `json:"slug"`
	ClaimedBy string `json:"claimed_by"`
}

type SignalFiled struct {
	Signal *model.Signal `json:"signal"`
	Streak *model.Streak `json:"streak,omitempty"`
}

type SignalCorrected struct {
	Signal *model.Signal `json:"signal"`
}

type BriefCompiled struct {
	Date       string        `json:"date"`
	CompiledBy string        `json:"compiled_by"`
	Summary    model.Summary `json:"summary"`
}

type BriefInscribed struct {
	Date        string             `json:"date"`
	Inscription *model.Inscription `json:"inscription"`
}

type EarningsCredited struct {
	Date           string   `json:"date"`
	TxID           string   `json:"txid"`
	PerHead        int64    `json:"per_head"`
	Correspondents []string `json:"correspondents"`
}

type BountyCreated struct {
	Bounty *model.Bounty `json:"bounty"`
}

type BountyClaimed struct {
	ID    string            `json:"id"`
	Claim model.BountyClaim `json:"claim"`
}

type BountyUpdated struct {
	Bounty *model.Bounty      `json:"bounty"`
	From   model.BountyStatus `json:"from"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber reads events back off the bus; nd watch --nats uses it. The
// cancel func unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(pattern string) (<-chan Message, func(), error)
	Close() error
}

// NoopPublisher drops every event. The server uses it when no bus is
// configured; its own SSE stream still sees events through Multi.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (*NoopPublisher) Close() error                               { return nil }

// Emit publishes event and logs, rather than returns, any failure. Events
// are side effects of operations that have already been persisted.
func Emit(ctx context.Context, p Publisher, topic string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// Multi fans every event out to several publishers. Publishing continues past
// a failing publisher; the first error is returned.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps published events in memory. Tests use it to assert which
// topics an operation emitted.
type Recorder struct {
	Topics []string
	Events []any
}

func (r *Recorder) Publish(_ context.Context, topic string, event any) error {
	r.Topics = append(r.Topics, topic)
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }
