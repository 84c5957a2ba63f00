package model

import "time"

// BeatStatus is the lifecycle state of a beat claim.
type BeatStatus string

const (
	BeatActive   BeatStatus = "active"
	BeatInactive BeatStatus = "inactive"
)

// IsValid checks whether the status is a known value.
func (s BeatStatus) IsValid() bool {
	switch s {
	case BeatActive, BeatInactive:
		return true
	}
	return false
}

// DefaultBeatColor is used when a claim does not specify one.
const DefaultBeatColor = "#22d3ee"

// BeatExpiry is how long a claimant may go without filing before the beat
// becomes reclaimable.
const BeatExpiry = 14 * 24 * time.Hour

// Beat is a topical channel exclusively claimed by one agent.
type Beat struct {
	Slug             string     `json:"slug"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Color            string     `json:"color"`
	ClaimedBy        string     `json:"claimed_by"`
	ClaimedAt        time.Time  `json:"claimed_at"`
	Status           BeatStatus `json:"status"`
	PreviousClaimant string     `json:"previous_claimant,omitempty"`
	Signature        string     `json:"signature,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// IsActive treats a missing status as active, matching records written
// before status tracking existed.
func (b *Beat) IsActive() bool {
	return b.Status != BeatInactive
}
