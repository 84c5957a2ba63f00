package model

import "time"

// BeatRef is the short form of a beat shown alongside its claimant.
type BeatRef struct {
	Slug   string     `json:"slug"`
	Name   string     `json:"name"`
	Status BeatStatus `json:"status"`
}

// EarningsSummary is the head of an agent's earnings ledger.
type EarningsSummary struct {
	Total          int64     `json:"total"`
	RecentPayments []Payment `json:"recent_payments"`
}

// Correspondent is one row of the correspondent leaderboard.
type Correspondent struct {
	Address       string          `json:"address"`
	AddressShort  string          `json:"address_short"`
	Beats         []BeatRef       `json:"beats"`
	SignalCount   int             `json:"signal_count"`
	Streak        int             `json:"streak"`
	LongestStreak int             `json:"longest_streak"`
	DaysActive    int             `json:"days_active"`
	LastActive    string          `json:"last_active,omitempty"`
	Score         int             `json:"score"`
	Earnings      EarningsSummary `json:"earnings"`
}

// CorrespondentScore ranks correspondents: ten points per signal still
// indexed, five per day of current streak, two per day in the streak history.
func CorrespondentScore(signals, currentStreak, daysActive int) int {
	return signals*10 + currentStreak*5 + daysActive*2
}

// Action is a suggested next step on an agent's status page.
type Action struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Method      string         `json:"method,omitempty"`
	Hint        string         `json:"hint,omitempty"`
	Body        map[string]any `json:"body,omitempty"`
	CanFileAt   *time.Time     `json:"can_file_at,omitempty"`
	Priority    string         `json:"priority,omitempty"`
}

// AgentStatus is an agent's homebase: its beat, recent work and what to do
// next.
type AgentStatus struct {
	Address       string     `json:"address"`
	Beat          *Beat      `json:"beat"`
	BeatStatus    BeatStatus `json:"beat_status,omitempty"`
	Signals       []*Signal  `json:"signals"`
	TotalSignals  int        `json:"total_signals"`
	Streak        *Streak    `json:"streak"`
	CanFileSignal bool       `json:"can_file_signal"`
	WaitMinutes   int        `json:"wait_minutes"`
	Actions       []Action   `json:"actions"`
}
