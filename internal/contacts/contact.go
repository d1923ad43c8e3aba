// Package contacts provides parsing and normalization of campaign contact
// lists from CSV files and pasted phone-number text.
// This package has no UI or transport dependencies and can be used by any frontend.
package contacts

import "strings"

// DefaultCountryCode is the prefix applied to numbers that do not already
// carry a country code. Brazilian mobile numbers are the primary audience.
const DefaultCountryCode = "55"

// Minimum digit counts (after country-code prefixing) for a number to be
// considered dispatchable. The file path demands a full mobile number with
// country code; the paste path is intentionally looser because users often
// paste numbers they have already verified elsewhere.
const (
	MinFilePhoneDigits  = 12
	MinPastePhoneDigits = 10
)

// ContactImport is a single normalized contact produced by an import.
// PhoneNumber contains only ASCII digits. Records are never mutated after
// the batch that holds them is built.
type ContactImport struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	IsValid     bool   `json:"isValid"`
}

// Batch is the ordered result of one import action, plus diagnostics.
// Every record in a batch went through the same normalization rule, so
// IsValid is comparable across the batch.
type Batch struct {
	Contacts []ContactImport

	// SkippedShort counts data rows dropped because they had fewer fields
	// than the mapped columns require. Non-fatal; recorded for diagnostics.
	SkippedShort int
}

// Valid returns only the valid contacts, preserving row order.
func (b Batch) Valid() []ContactImport {
	out := make([]ContactImport, 0, len(b.Contacts))
	for _, c := range b.Contacts {
		if c.IsValid {
			out = append(out, c)
		}
	}
	return out
}

// ValidCount returns the number of valid contacts in the batch.
func (b Batch) ValidCount() int {
	n := 0
	for _, c := range b.Contacts {
		if c.IsValid {
			n++
		}
	}
	return n
}

// InvalidCount returns the number of invalid contacts in the batch.
func (b Batch) InvalidCount() int {
	return len(b.Contacts) - b.ValidCount()
}

// digitsOnly strips every non-digit character. Only ASCII digits survive,
// which keeps the PhoneNumber invariant trivially true.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeFilePhone applies the file-import rule: strip non-digits, prefix
// the country code when the number is short enough to plausibly lack one,
// and validate against the full-number threshold.
func normalizeFilePhone(raw, countryCode string) (string, bool) {
	digits := digitsOnly(raw)
	if len(digits) <= MinFilePhoneDigits && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits, len(digits) >= MinFilePhoneDigits
}

// normalizePastePhone applies the paste rule: prefix unconditionally unless
// the country code is already present. This is deliberately looser than the
// file path; do not unify the two.
func normalizePastePhone(digits, countryCode string) (string, bool) {
	if !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits, len(digits) >= MinPastePhoneDigits
}
