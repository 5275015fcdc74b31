package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Plain email addresses (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +xx..., (xxx) xxx-xxxx, 08xx...
// Only digits, spaces, dashes, dots, parentheses and a leading plus; at least 9 characters.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.()]{7,}\d`)

// Long digit runs: card and account numbers keep only their last 4 digits.
var reAccount = regexp.MustCompile(`\b\d{8,19}\b`)

// RedactPII masks emails and phone numbers in free text.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// MaskAccount keeps the last four characters of an account number.
func MaskAccount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if utf8.RuneCountInString(s) <= 4 {
		return strings.Repeat("*", utf8.RuneCountInString(s))
	}
	r := []rune(s)
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// MaskDigits replaces long digit runs inside free text.
func MaskDigits(s string) string {
	return reAccount.ReplaceAllStringFunc(s, MaskAccount)
}

// Summary cuts s at a word boundary for listings.
func Summary(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	i := max
	for i > 0 && r[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return strings.TrimRight(string(r[:i]), " ") + "…"
}

// Preview is the redacted, shortened description shown in claim lists.
func Preview(s string, max int) string {
	return Summary(RedactPII(MaskDigits(strings.TrimSpace(s))), max)
}
