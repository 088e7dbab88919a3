// Package money holds all fee amounts as integer minor units (kobo).
// The major unit (Naira) only exists at the presentation boundary.
package money

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const minorPerMajor = 100

var (
	// NairaSign prefixes every formatted amount.
	NairaSign = "₦"

	// NoValue is what formats in place of an absent amount; "no data" must
	// not read as "zero amount".
	NoValue = "N/A"

	ErrInvalidAmount = errors.New("invalid amount")
)

// Amount is a monetary value in minor units.
type Amount int64

// FromMajor converts a major-unit value to minor units.
// It rounds (not truncates) to avoid systematic underbilling.
func FromMajor(major float64) Amount {
	return Amount(math.Round(major * minorPerMajor))
}

// Major converts a to its major-unit value.
func (a Amount) Major() float64 {
	return float64(a) / minorPerMajor
}

// Clamp floors a at zero; negative amounts must not escape to display.
func (a Amount) Clamp() Amount {
	if a < 0 {
		return 0
	}
	return a
}

// ParseMajor parses a major-unit decimal string into an Amount.
// Returns ErrInvalidAmount for anything that is not a finite number.
func ParseMajor(s string) (Amount, error) {
	major, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(major) || math.IsInf(major, 0) {
		return 0, ErrInvalidAmount
	}
	return FromMajor(major), nil
}

// String formats a as a fixed two-decimal, thousands-grouped string with the
// currency sign, e.g. "₦1,234.56".
func (a Amount) String() string {
	minor := int64(a)
	var sign string
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := strconv.FormatInt(minor/minorPerMajor, 10)
	frac := minor % minorPerMajor

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(NairaSign)
	lead := len(whole) % 3
	if lead > 0 {
		b.WriteString(whole[:lead])
		if len(whole) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(whole); i += 3 {
		b.WriteString(whole[i : i+3])
		if i+3 < len(whole) {
			b.WriteByte(',')
		}
	}
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(frac/10, 10))
	b.WriteString(strconv.FormatInt(frac%10, 10))
	return b.String()
}

// FormatPtr formats a nullable amount; absence formats as NoValue.
func FormatPtr(a *Amount) string {
	if a == nil {
		return NoValue
	}
	return a.String()
}
