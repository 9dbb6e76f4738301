package participants

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
)

const (
	DefaultMaxResults    = 5
	DefaultMinConfidence = 0.6
)

// Match fields reported in search results.
const (
	MatchID     = "id"
	MatchNameRU = "name_ru"
	MatchNameEN = "name_en"
)

// SearchResult is a ranked hit.
type SearchResult struct {
	Participant models.Participant
	Confidence  float64
	MatchField  string
}

// Search resolves query against the stored records.
//
// A purely numeric query is tried as an id first; a hit is returned alone
// with confidence 1. Otherwise exact case-insensitive matches on either
// name are returned with confidence 1 and fuzzy search is skipped. Failing
// that, records are scored against both names, filtered by minConfidence,
// best first, at most maxResults.
func (s *Service) Search(ctx context.Context, query string, maxResults int, minConfidence float64) ([]SearchResult, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	if isNumeric(query) {
		p, err := s.repo.GetByID(ctx, query)
		switch {
		case err == nil:
			return []SearchResult{{Participant: *p, Confidence: 1, MatchField: MatchID}}, nil
		case !apperr.IsNotFound(err):
			return nil, apperr.Storage("search by id", err)
		}
	}

	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, apperr.Storage("search", err)
	}

	q := NameKey(query)
	var exact []SearchResult
	for _, p := range all {
		switch {
		case NameKey(p.FullNameRU) == q:
			exact = append(exact, SearchResult{Participant: p, Confidence: 1, MatchField: MatchNameRU})
		case p.FullNameEN != "" && NameKey(p.FullNameEN) == q:
			exact = append(exact, SearchResult{Participant: p, Confidence: 1, MatchField: MatchNameEN})
		}
	}
	if len(exact) > 0 {
		return truncate(exact, maxResults), nil
	}

	var out []SearchResult
	for _, p := range all {
		ru := s.nameScore(q, p.FullNameRU)
		en := s.nameScore(q, p.FullNameEN)
		r := SearchResult{Participant: p, Confidence: ru, MatchField: MatchNameRU}
		if en > ru {
			r.Confidence, r.MatchField = en, MatchNameEN
		}
		if r.Confidence >= minConfidence {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return truncate(out, maxResults), nil
}

// nameScore compares query with the whole name and with each of its words,
// so a first name alone still finds the record.
func (s *Service) nameScore(query, name string) float64 {
	name = NameKey(name)
	if name == "" {
		return 0
	}
	best := s.matcher.Similarity(query, name)
	for _, w := range strings.Fields(name) {
		if sc := s.matcher.Similarity(query, w); sc > best {
			best = sc
		}
	}
	return best
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func truncate(rs []SearchResult, n int) []SearchResult {
	if len(rs) > n {
		return rs[:n]
	}
	return rs
}
