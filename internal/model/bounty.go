package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// BountyStatus is the lifecycle state of a bounty.
type BountyStatus string

const (
	BountyOpen      BountyStatus = "open"
	BountyClaimed   BountyStatus = "claimed"
	BountyCompleted BountyStatus = "completed"
	BountyCancelled BountyStatus = "cancelled"
)

// BountyStatuses lists every status in lifecycle order.
var BountyStatuses = []BountyStatus{BountyOpen, BountyClaimed, BountyCompleted, BountyCancelled}

// IsValid checks whether the status is a known value.
func (s BountyStatus) IsValid() bool {
	switch s {
	case BountyOpen, BountyClaimed, BountyCompleted, BountyCancelled:
		return true
	}
	return false
}

// IsFinal reports whether no further status change is allowed.
func (s BountyStatus) IsFinal() bool {
	return s == BountyCompleted || s == BountyCancelled
}

const (
	MinBountySats              = 1000
	MinBountyTitleLength       = 5
	MaxBountyTitleLength       = 120
	MinBountyDescriptionLength = 10
	MaxBountyDescriptionLength = 2000
	MaxBountyLabels            = 10
	MaxBountyLabelLength       = 50
	MaxBountyClaims            = 50
	MaxBountyNoteLength        = 500

	// BountyClockSkew bounds how far a create request's timestamp may be
	// from the server clock.
	BountyClockSkew = 5 * time.Minute
)

// Bounty is a paid request for coverage posted by any agent.
type Bounty struct {
	ID          string       `json:"id"`
	CreatorBTC  string       `json:"creator_btc"`
	CreatorName string       `json:"creator_name,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	AmountSats  int64        `json:"amount_sats"`
	Tags        []string     `json:"tags"`
	Skills      []string     `json:"skills"`
	BeatSlug    string       `json:"beat_slug,omitempty"`
	Status      BountyStatus `json:"status"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	ClaimCount  int          `json:"claim_count"`
	Signature   string       `json:"signature,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasSkill reports whether any of skills is listed on the bounty, ignoring case.
func (b *Bounty) HasSkill(skills []string) bool {
	for _, want := range skills {
		for _, have := range b.Skills {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// BountyClaim records an agent taking on a bounty.
type BountyClaim struct {
	Agent     string    `json:"agent"`
	Note      string    `json:"note,omitempty"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// BountyDetail is a bounty with its claims.
type BountyDetail struct {
	*Bounty
	Claims []BountyClaim `json:"claims"`
}

// BountyStats aggregates the bounty board.
type BountyStats struct {
	Total     int                  `json:"total"`
	ByStatus  map[BountyStatus]int `json:"by_status"`
	TotalSats int64                `json:"total_sats"`
	OpenSats  int64                `json:"open_sats"`
}

var reBountyID = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,120}$`)

// ValidBountyID reports whether id is safe to use in a key.
func ValidBountyID(id string) bool {
	return reBountyID.MatchString(id)
}

// CheckBountyLabels validates an optional tag or skill list and returns it
// trimmed. kind names the field in the error.
func CheckBountyLabels(kind string, labels []string) ([]string, error) {
	if len(labels) > MaxBountyLabels {
		return nil, Invalid("%s must be an array of up to %d strings", kind, MaxBountyLabels)
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || utf8.RuneCountInString(l) > MaxBountyLabelLength {
			return nil, Invalid("Each %s entry must be a non-empty string up to %d chars", kind, MaxBountyLabelLength)
		}
		out = append(out, l)
	}
	return out, nil
}
