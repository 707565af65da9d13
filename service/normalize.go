package service

import (
	"strings"
	"unicode"
)

// Canonical forms for common US address abbreviations. Normalization
// maps both the abbreviation and the long form to one token so that
// "123 Oak St" and "123 Oak Street" group together.
var addressAbbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"av":        "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"lane":      "ln",
	"road":      "rd",
	"court":     "ct",
	"circle":    "cir",
	"place":     "pl",
	"highway":   "hwy",
	"parkway":   "pkwy",
	"terrace":   "ter",
	"trail":     "trl",
	"apartment": "apt",
	"suite":     "ste",
	"unit":      "apt",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
	"northeast": "ne",
	"northwest": "nw",
	"southeast": "se",
	"southwest": "sw",
	"fort":      "ft",
	"saint":     "st",
	"mount":     "mt",
}

// normalizeAddress produces the merge key for an address candidate:
// case-folded, punctuation stripped, whitespace collapsed, common
// abbreviations canonicalized. Empty input normalizes to "".
func normalizeAddress(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == ',' || r == '.' || r == '-' || r == '/' || r == '#':
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	for i, f := range fields {
		if canon, ok := addressAbbreviations[f]; ok {
			fields[i] = canon
		}
	}
	return strings.Join(fields, " ")
}

// normalizePhone strips everything but digits and drops a leading US
// country code, so "(504) 555-0134" and "+1 504 555 0134" match.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// digitsOnly strips everything but digits.
func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneLastFour returns the last four digits of a phone number, or the
// whole digit string when shorter than four.
func phoneLastFour(raw string) string {
	digits := normalizePhone(raw)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// normalizeName case-folds and collapses whitespace for person matching.
func normalizeName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// normalizeVehicle produces the merge key for a vehicle description.
func normalizeVehicle(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if unicode.IsSpace(r) || r == ',' || r == '-' {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// editDistance computes the Levenshtein distance between two strings,
// used to group near-identical normalized addresses (typos, dropped
// unit numbers).
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// addressesMatch reports whether two normalized addresses should merge:
// identical, or within a small edit-distance tolerance scaled down for
// short strings so "12 oak st" never absorbs "14 oak st" by accident.
func addressesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	if shorter < 12 {
		return false
	}
	return editDistance(a, b) <= 2
}
