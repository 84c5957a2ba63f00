package model

import "time"

// MaxStreakHistory bounds the filing-date history kept per agent.
const MaxStreakHistory = 90

// DateLayout is the calendar-date key format used for streaks and briefs.
const DateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Streak tracks an agent's consecutive filing days.
type Streak struct {
	Agent    string   `json:"agent,omitempty"`
	Current  int      `json:"current"`
	Longest  int      `json:"longest"`
	LastDate string   `json:"last_date,omitempty"`
	History  []string `json:"history"`
}
