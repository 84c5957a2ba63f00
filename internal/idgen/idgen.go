// Package idgen generates time-derived, sortable signal and bounty IDs
// backed by nanoid.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// SignalPrefix is prepended to every signal ID.
const SignalPrefix = "s_"

// Alphabet defines the character set used for the random suffix. It matches
// the base36 alphabet of the time component so IDs stay lowercase.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters in the suffix.
var Length = 6

// SignalID returns a new ID of the form s_<base36 unix ms>_<random>. IDs from
// different milliseconds sort by time as long as the time component keeps
// its width, which holds until the year 2059.
func SignalID(at time.Time) (string, error) {
	suffix, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return SignalPrefix + strconv.FormatInt(at.UnixMilli(), 36) + "_" + suffix, nil
}

// BountyID returns a new ID of the form <base36 unix ms>-<6 random>-<4 random>.
func BountyID(at time.Time) (string, error) {
	a, err := nanoid.Generate(Alphabet, 6)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	b, err := nanoid.Generate(Alphabet, 4)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return strconv.FormatInt(at.UnixMilli(), 36) + "-" + a + "-" + b, nil
}

// TimeOf recovers the millisecond timestamp embedded in a signal ID.
func TimeOf(id string) (time.Time, bool) {
	if len(id) < len(SignalPrefix) || id[:len(SignalPrefix)] != SignalPrefix {
		return time.Time{}, false
	}
	rest := id[len(SignalPrefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '_' {
			ms, err := strconv.ParseInt(rest[:i], 36, 64)
			if err != nil {
				return time.Time{}, false
			}
			return time.UnixMilli(ms).UTC(), true
		}
	}
	return time.Time{}, false
}
