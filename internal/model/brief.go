package model

import "time"

// Brief is the compiled report for one calendar date.
type Brief struct {
	Date          string       `json:"date"`
	CompiledAt    time.Time    `json:"compiled_at"`
	CompiledBy    string       `json:"compiled_by"`
	LookbackHours int          `json:"lookback_hours"`
	Summary       Summary      `json:"summary"`
	Sections      []Section    `json:"sections"`
	Text          string       `json:"text"`
	Inscription   *Inscription `json:"inscription,omitempty"`
}

// Summary counts what went into a brief.
type Summary struct {
	Correspondents       int `json:"correspondents"`
	Beats                int `json:"beats"`
	Signals              int `json:"signals"`
	TotalBeatsRegistered int `json:"total_beats_registered"`
}

// Section is one signal as it appears in a brief.
type Section struct {
	Beat               string    `json:"beat"`
	BeatSlug           string    `json:"beat_slug"`
	BeatColor          string    `json:"beat_color"`
	Correspondent      string    `json:"correspondent"`
	CorrespondentShort string    `json:"correspondent_short"`
	Streak             int       `json:"streak"`
	Timestamp          time.Time `json:"timestamp"`
	Headline           string    `json:"headline,omitempty"`
	Content            string    `json:"content"`
	Sources            []Source  `json:"sources,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	SignalID           string    `json:"signal_id"`
}

// Inscription records an external attestation of a brief.
type Inscription struct {
	InscriptionID string    `json:"inscription_id"`
	InscribedBy   string    `json:"inscribed_by"`
	InscribedAt   time.Time `json:"inscribed_at"`
	Signature     string    `json:"signature"`
}

// Correspondents returns the distinct correspondents referenced by the
// brief's sections, in order of first appearance.
func (b *Brief) Correspondents() []string {
	seen := make(map[string]struct{}, len(b.Sections))
	var out []string
	for _, s := range b.Sections {
		if _, ok := seen[s.Correspondent]; ok {
			continue
		}
		seen[s.Correspondent] = struct{}{}
		out = append(out, s.Correspondent)
	}
	return out
}
