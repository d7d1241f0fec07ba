// Package phone normalises guest phone numbers and validates E.164 before any SMS or
// WhatsApp adapter sees them.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid is returned for numbers that are not valid E.164 after normalisation.
var ErrInvalid = errors.New("phone number is not valid E.164")

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// ValidateE164 reports whether s is "+" followed by 8 to 15 digits with no leading zero.
func ValidateE164(s string) bool {
	return e164.MatchString(s)
}

// Normalize strips separators and returns the number in E.164 form. A leading "00" is an
// international prefix; a single leading "0" marks a national number and is replaced by
// defaultCountryCode. A redundant trunk zero after the country code is dropped.
func Normalize(raw, defaultCountryCode string) (string, error) {
	var b strings.Builder
	plus := false
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			plus = true
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			return "", ErrInvalid
		}
	}
	digits := b.String()
	cc := strings.TrimPrefix(defaultCountryCode, "+")
	switch {
	case plus:
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && cc != "":
		digits = cc + digits[1:]
	case cc != "" && !strings.HasPrefix(digits, cc):
		digits = cc + digits
	}
	if cc != "" && strings.HasPrefix(digits, cc+"0") {
		digits = cc + digits[len(cc)+1:]
	}
	out := "+" + digits
	if !ValidateE164(out) {
		return "", ErrInvalid
	}
	return out, nil
}

// Digits returns the number without the leading "+", the form WhatsApp JIDs use.
func Digits(e164 string) string {
	return strings.TrimPrefix(e164, "+")
}
