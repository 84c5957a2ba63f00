package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	reBTCAddress    = regexp.MustCompile(`^bc1[a-zA-HJ-NP-Z0-9]{25,87}$`)
	reSlug          = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,48}[a-z0-9]$`)
	reShortSlug     = regexp.MustCompile(`^[a-z0-9]{3}$`)
	reHexColor      = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	reSignature     = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
	reTag           = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,28}[a-z0-9]$`)
	reSignalID      = regexp.MustCompile(`^s_[a-z0-9]+_[a-z0-9]+$`)
	reDate          = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reInscriptionTx = regexp.MustCompile(`^[a-f0-9]{64}i\d+$`)
	reOrdinalNumber = regexp.MustCompile(`^\d+$`)
	reWhitespace    = regexp.MustCompile(`\s+`)
)

const (
	maxSourceURLLength   = 500
	maxSourceTitleLength = 200
	minSignatureLength   = 20
	maxSignatureLength   = 200
)

// ValidBTCAddress reports whether addr is a bech32 mainnet address.
func ValidBTCAddress(addr string) bool {
	return reBTCAddress.MatchString(addr)
}

// ValidSlug reports whether slug is 3-50 lowercase alphanumerics and hyphens,
// neither starting nor ending with a hyphen.
func ValidSlug(slug string) bool {
	return reSlug.MatchString(slug) || reShortSlug.MatchString(slug)
}

// ValidHexColor reports whether color has the form #RRGGBB.
func ValidHexColor(color string) bool {
	return reHexColor.MatchString(color)
}

// ValidSignalID reports whether id has the shape produced by idgen.
func ValidSignalID(id string) bool {
	return reSignalID.MatchString(id)
}

// ValidDate reports whether date is a real YYYY-MM-DD calendar date.
func ValidDate(date string) bool {
	if !reDate.MatchString(date) {
		return false
	}
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// ValidInscriptionID accepts {txid}i{index} or a bare ordinal number.
func ValidInscriptionID(id string) bool {
	return reInscriptionTx.MatchString(id) || reOrdinalNumber.MatchString(id)
}

// SlugFromBeat derives a beat slug from user input such as "Bitcoin Macro".
func SlugFromBeat(beat string) string {
	return reWhitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(beat)), "-")
}

// Sanitize trims s and truncates it to max runes.
func Sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// CheckAddress validates a filer or claimant address.
func CheckAddress(addr string) error {
	if !ValidBTCAddress(addr) {
		return Invalid("Invalid BTC address format (expected bech32 bc1...)")
	}
	return nil
}

// CheckSignature validates the shape of a signature proof. Only the format is
// checked; the signature is never verified.
func CheckSignature(sig, message string) error {
	if sig == "" {
		e := Unauthenticated("Missing signature")
		if message != "" {
			return e.WithHint(`Sign: "` + message + `"`)
		}
		return e
	}
	if n := len(sig); n < minSignatureLength || n > maxSignatureLength || !reSignature.MatchString(sig) {
		return Unauthenticated("Invalid signature format (expected base64, 20-200 chars)")
	}
	return nil
}

// CheckHeadline validates an optional headline that was supplied.
func CheckHeadline(h string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(h))
	if n < 1 || n > MaxHeadlineLength {
		return Invalid("Invalid headline (string, 1-120 chars)")
	}
	return nil
}

// CheckSources validates an optional source list that was supplied.
func CheckSources(sources []Source) error {
	bad := Invalid("Invalid sources (array of {url, title}, max 5)")
	if len(sources) < 1 || len(sources) > MaxSources {
		return bad
	}
	for _, s := range sources {
		u := strings.TrimSpace(s.URL)
		t := strings.TrimSpace(s.Title)
		if u == "" || len(u) > maxSourceURLLength {
			return bad
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return bad
		}
		if t == "" || utf8.RuneCountInString(t) > maxSourceTitleLength {
			return bad
		}
	}
	return nil
}

// CheckTags validates an optional tag list that was supplied.
func CheckTags(tags []string) error {
	bad := Invalid("Invalid tags (array of lowercase slugs, max 10, 2-30 chars each)")
	if len(tags) < 1 || len(tags) > MaxTags {
		return bad
	}
	for _, t := range tags {
		if !reTag.MatchString(t) {
			return bad
		}
	}
	return nil
}
