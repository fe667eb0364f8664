// Package phone derives canonical matching keys from raw phone strings.
package phone

import "strings"

// Normalize reduces a raw phone string to its matching key: the trailing
// 10 digits, or the full digit string when fewer than 10 exist. Empty
// input yields an empty key. Normalize is idempotent.
func Normalize(raw string) string {
	digits := digitsOf(raw)
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// FormatE164 formats a raw phone string for submission to the CRM as a
// +1-prefixed US number. Inputs with fewer than 10 digits are returned
// unchanged; empty input yields an empty string.
func FormatE164(raw string) string {
	if raw == "" {
		return ""
	}
	digits := digitsOf(raw)
	if len(digits) >= 10 {
		return "+1" + digits[len(digits)-10:]
	}
	return raw
}

// Digits strips every non-digit character from a raw phone string.
func Digits(raw string) string {
	return digitsOf(raw)
}

func digitsOf(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
