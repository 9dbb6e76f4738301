package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type token struct {
	orig  string // as split from the message
	raw   string // punctuation trimmed
	upper string
	used  bool
}

const trimSet = ".,!?()[]{}\"'«»“”„:;"

func key(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// canonicalText applies NFC so that composed and decomposed Cyrillic
// letters (Й, Ё) compare equal.
func canonicalText(s string) string {
	return norm.NFC.String(s)
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == ';' || r == '|'
}

func tokenize(text string) []*token {
	fields := strings.FieldsFunc(canonicalText(text), isSeparator)
	out := make([]*token, 0, len(fields))
	for _, f := range fields {
		raw := strings.Trim(f, trimSet)
		if raw == "" {
			continue
		}
		out = append(out, &token{orig: f, raw: raw, upper: strings.ToUpper(raw)})
	}
	return out
}

// window returns the upper-cased tokens within radius of i, excluding i.
func window(toks []*token, i, radius int) []string {
	var out []string
	for j := i - radius; j <= i+radius; j++ {
		if j < 0 || j >= len(toks) || j == i {
			continue
		}
		out = append(out, toks[j].upper)
	}
	return out
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// isLatinWord reports whether s consists of ASCII letters, hyphens and
// apostrophes only.
func isLatinWord(s string) bool {
	if s == "" {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letters++
		case r == '-' || r == '\'':
		default:
			return false
		}
	}
	return letters > 0
}

var titleCaser = cases.Title(language.Und)

// tidyName collapses whitespace and title-cases names typed entirely in
// upper or lower case. Mixed-case input is kept as typed.
func tidyName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return titleCaser.String(strings.ToLower(s))
	}
	return s
}

func isDecoration(r rune) bool {
	return unicode.Is(unicode.So, r) ||
		unicode.Is(unicode.Sk, r) ||
		unicode.Is(unicode.Variation_Selector, r) ||
		r == '\u200d'
}

var stripDecorations = transform.Chain(norm.NFC, runes.Remove(runes.Predicate(isDecoration)))

// stripEmoji removes emoji and other symbol decorations.
func stripEmoji(s string) string {
	out, _, err := transform.String(stripDecorations, s)
	if err != nil {
		return s
	}
	return out
}
