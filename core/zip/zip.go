// Package zip normalizes raw ZIP/postal codes into the fixed-width prefixes
// used for zone and surcharge lookups.
package zip

import (
	"errors"
	"strings"
	"unicode"
)

// International is the sentinel for non-North-American or non-numeric codes
const International = "INT"

// ErrEmpty is returned for codes with nothing left after cleaning
var ErrEmpty = errors.New("zip code is empty")

// clean strips every non-alphanumeric character.
func clean(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// zfill left-pads s with zeros to width n.
func zfill(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

// IsInternational reports whether raw carries letters (Canadian and other
// alphanumeric postal codes).
func IsInternational(raw string) bool {
	return hasLetter(clean(raw))
}

// Prefix3 returns the 3-digit zone-lookup prefix of raw, or International.
// Four-digit input is treated as a ZIP that lost its leading zero.
func Prefix3(raw string) (string, error) {
	c := clean(raw)
	if c == "" {
		return "", ErrEmpty
	}
	if hasLetter(c) {
		return International, nil
	}
	d := digits(c)
	if d == "" {
		return International, nil
	}
	if len(d) == 4 {
		d = zfill(d, 5)
	}
	return zfill(d, 3)[:3], nil
}

// Five returns the 5-digit surcharge-lookup code of raw, or International.
func Five(raw string) (string, error) {
	c := clean(raw)
	if c == "" {
		return "", ErrEmpty
	}
	if hasLetter(c) {
		return International, nil
	}
	return zfill(c, 5)[:5], nil
}

// PadPrefix zero-pads a numeric reference-data header ("5" → "005") so
// spreadsheet cells that lost leading zeros still match.
func PadPrefix(s string, width int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	if s == "" || digits(s) != s {
		return s
	}
	return zfill(s, width)
}
