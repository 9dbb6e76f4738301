package parser

import (
	"regexp"
	"strings"
	"unicode"
)

// ContactKind tells what a validated contact is.
type ContactKind string

const (
	ContactNone  ContactKind = ""
	ContactEmail ContactKind = "email"
	ContactPhone ContactKind = "phone"
)

var (
	ilMobileLocal   = regexp.MustCompile(`^05[023458]\d{7}$`)
	ilLandlineLocal = regexp.MustCompile(`^0[23489]\d{7}$`)
	ilMobileIntl    = regexp.MustCompile(`^\+9725[023458]\d{7}$`)
	ilLandlineIntl  = regexp.MustCompile(`^\+972[23489]\d{7}$`)
)

// ValidateEmail checks: exactly one '@', non-empty local part, a dotted
// domain whose last label has at least two characters, 5..254 characters,
// no whitespace.
func ValidateEmail(s string) bool {
	if len(s) < 5 || len(s) > 254 {
		return false
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	if strings.Count(s, "@") != 1 {
		return false
	}
	at := strings.IndexByte(s, '@')
	local, domain := s[:at], s[at+1:]
	if local == "" || !strings.Contains(domain, ".") {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	last := domain[strings.LastIndexByte(domain, '.')+1:]
	return len([]rune(last)) >= 2
}

// NormalizePhone strips formatting and validates a phone number. Israeli
// local numbers keep their 0-prefixed form; international numbers are
// returned as +<digits>.
func NormalizePhone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	cleaned := b.String()
	digits := strings.TrimPrefix(cleaned, "+")
	plus := len(digits) != len(cleaned)

	if !plus && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		plus = true
	}
	if len(digits) < 7 || len(digits) > 15 || allSame(digits) {
		return "", false
	}

	if !plus && strings.HasPrefix(digits, "972") && len(digits) >= 11 {
		plus = true
	}
	if plus {
		intl := "+" + digits
		if strings.HasPrefix(digits, "972") {
			if ilMobileIntl.MatchString(intl) || ilLandlineIntl.MatchString(intl) {
				return intl, true
			}
			return "", false
		}
		return intl, true
	}
	if strings.HasPrefix(digits, "0") {
		if ilMobileLocal.MatchString(digits) || ilLandlineLocal.MatchString(digits) {
			return digits, true
		}
		return "", false
	}
	return digits, true
}

// ValidateContact accepts an email or a phone number and returns its
// normalized form.
func ValidateContact(s string) (string, ContactKind, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		if ValidateEmail(s) {
			return s, ContactEmail, true
		}
		return "", ContactNone, false
	}
	if p, ok := NormalizePhone(s); ok {
		return p, ContactPhone, true
	}
	return "", ContactNone, false
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// phoneLike reports whether a token may be part of a phone number.
func phoneLike(s string) bool {
	if !hasDigit(s) {
		return false
	}
	for _, r := range s {
		if !(unicode.IsDigit(r) || r == '+' || r == '-' || r == '(' || r == ')' || r == '.') {
			return false
		}
	}
	return true
}
