package model

import "time"

// Signal limits.
const (
	MaxContentLength    = 1000
	MaxHeadlineLength   = 120
	MaxCorrectionLength = 500
	MaxSources          = 5
	MaxTags             = 10
)

// Source is a citation attached to a signal.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Signal is one timestamped intelligence entry filed against a beat.
type Signal struct {
	ID          string     `json:"id"`
	BTCAddress  string     `json:"btc_address"`
	Beat        string     `json:"beat"`
	BeatSlug    string     `json:"beat_slug"`
	Headline    string     `json:"headline,omitempty"`
	Content     string     `json:"content"`
	Sources     []Source   `json:"sources,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Signature   string     `json:"signature"`
	Correction  string     `json:"correction,omitempty"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// IsCorrected reports whether the author has already annotated the signal.
func (s *Signal) IsCorrected() bool {
	return s.CorrectedAt != nil
}
