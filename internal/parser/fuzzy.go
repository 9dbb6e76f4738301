package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Default similarity thresholds. Departments use a lower bar: the
// vocabulary is small and typos are common.
const (
	ChurchThreshold     = 0.75
	DepartmentThreshold = 0.7
)

// DistanceFunc returns the edit distance between two strings.
type DistanceFunc func(a, b string) int

// Matcher scores approximate string matches. Without a distance function it
// falls back to a coarse heuristic: 1.0 equal, 0.8 substring, 0 otherwise.
type Matcher struct {
	distance DistanceFunc
}

// NewMatcher returns a Levenshtein-based matcher.
func NewMatcher() *Matcher {
	return &Matcher{distance: levenshtein.ComputeDistance}
}

// NewMatcherWithDistance returns a matcher using fn; nil selects the
// substring heuristic.
func NewMatcherWithDistance(fn DistanceFunc) *Matcher {
	return &Matcher{distance: fn}
}

// Similarity returns a 0..1 score for a and b, case-insensitive.
func (m *Matcher) Similarity(a, b string) float64 {
	a, b = key(a), key(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if m.distance == nil {
		if strings.Contains(a, b) || strings.Contains(b, a) {
			return 0.8
		}
		return 0
	}
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	score := 1 - float64(m.distance(a, b))/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// BestMatch returns the candidate most similar to token when its score
// reaches threshold. Ties keep the first candidate.
func (m *Matcher) BestMatch(token string, candidates []string, threshold float64) (string, float64, bool) {
	best, bestScore := "", 0.0
	for _, c := range candidates {
		if s := m.Similarity(token, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	if best == "" || bestScore < threshold {
		return "", 0, false
	}
	return best, bestScore, true
}

// MatchChurch matches token against church names. Individual words of
// multi-word names are tried before whole names so a partial mention
// ("Шаддай") still resolves.
func (m *Matcher) MatchChurch(token string, churches []string, threshold float64) (string, float64, bool) {
	best, bestScore := "", 0.0
	for _, c := range churches {
		words := strings.Fields(c)
		if len(words) < 2 {
			continue
		}
		for _, w := range words {
			if utf8.RuneCountInString(w) < 4 {
				continue
			}
			if s := m.Similarity(token, w); s > bestScore {
				best, bestScore = c, s
			}
		}
	}
	if bestScore >= threshold {
		return best, bestScore, true
	}
	return m.BestMatch(token, churches, threshold)
}
