// Package phone canonicalizes phone numbers to E.164 and decides which
// outbound channels are usable for a number's country.
package phone

import (
	"strings"
	"unicode/utf8"
)

const (
	mexicoCode = "52"
	chileCode  = "56"

	// DefaultSMSLength is the single-segment GSM-7 limit.
	DefaultSMSLength = 160
	truncationSuffix = "..."
)

// Normalize canonicalizes raw input to E.164 ("+" + digits).
//
// Numbers already carrying "+" (or the "00" international prefix) are kept,
// otherwise local shapes are recognised:
//   - 10 digits starting 2-9: Mexican number in the post-2019 unified plan
//   - 9 digits starting 9: Chilean mobile
//
// Anything else gets "+" prepended verbatim. Mexican legacy mobile numbers
// (+521 + 10 digits) lose the obsolete "1". Normalize is idempotent.
func Normalize(raw string) string {
	var b strings.Builder
	hasPlus := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			hasPlus = true
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if !hasPlus {
		switch {
		case strings.HasPrefix(digits, "00") && len(digits) > 2:
			digits = digits[2:]
		case len(digits) == 10 && digits[0] >= '2':
			digits = mexicoCode + digits
		case len(digits) == 9 && digits[0] == '9':
			digits = chileCode + digits
		}
	}

	if len(digits) == 13 && strings.HasPrefix(digits, mexicoCode+"1") {
		digits = mexicoCode + digits[3:]
	}

	return "+" + digits
}

// DigitCount returns the number of digits in the normalized form.
func DigitCount(raw string) int {
	return len(strings.TrimPrefix(Normalize(raw), "+"))
}

// Truncate shortens message to at most maxLen characters, replacing the tail
// with "..." when it had to cut. Limits too small for the suffix get a plain
// cut. A non-positive maxLen uses DefaultSMSLength.
func Truncate(message string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSMSLength
	}
	if utf8.RuneCountInString(message) <= maxLen {
		return message
	}
	runes := []rune(message)
	if maxLen <= len(truncationSuffix) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(truncationSuffix)]) + truncationSuffix
}
