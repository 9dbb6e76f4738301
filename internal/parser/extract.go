// Package parser turns free-form registration messages into field values.
//
// Two paths exist. Messages with at least three "Label: value" lines go
// through the template parser. Everything else goes through the free-text
// extractor, a sequence of passes over the tokenized message in which each
// pass marks the tokens it consumes so that no token lands in two fields.
//
// Nothing in this package returns an error for unrecognized input: a value
// that cannot be recognized is simply absent from the result.
package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"participants-bot/internal/models"
	"participants-bot/internal/refdata"
)

// Source tells which path produced a FieldSet.
type Source string

const (
	SourceFreeText Source = "free_text"
	SourceTemplate Source = "template"
	SourceIntent   Source = "intent"
)

var (
	churchKeywords = set("ЦЕРКОВЬ", "ЦЕРКВИ", "ЦЕРКВА", "CHURCH", "ОБЩИНА", "ОБЩИНЫ", "КЕХИЛА")
	cityKeywords   = set("ГОРОД", "ГОР", "Г", "CITY", "TOWN", "ИЗ")

	// noise words carry no value of their own; they are consumed so they
	// never end up in a name.
	noise = set(
		"ИМЯ", "NAME", "ФИО", "ПОЛ", "GENDER", "SEX", "РАЗМЕР", "РАЗМЕРА", "SIZE", "SZ",
		"РОЛЬ", "ROLE", "ДЕПАРТАМЕНТ", "ОТДЕЛ", "СЛУЖЕНИЕ", "DEPARTMENT", "DEPT",
		"КОНТАКТ", "КОНТАКТЫ", "ТЕЛЕФОН", "ТЕЛ", "PHONE", "EMAIL", "E-MAIL", "ПОЧТА",
		"ГОРОД", "CITY", "ЦЕРКОВЬ", "ЦЕРКВИ", "CHURCH",
		"ПРИВЕТ", "ЗДРАВСТВУЙТЕ", "МЕНЯ", "ЗОВУТ", "ЭТО", "HELLO", "HI", "MY", "IS",
		"И", "В", "ИЗ", "НА", "ДЛЯ", "ОДЕЖДЫ", "ФУТБОЛКИ", "AND",
	)
)

type phrase struct {
	value string
	words []string
}

// Extractor runs both extraction paths. It only reads the reference data
// and is safe for concurrent use.
type Extractor struct {
	norm     *Normalizer
	matcher  *Matcher
	resolver *Resolver

	churches      []string
	churchPhrases []phrase
	cityPhrases   []phrase
	cityIndex     map[string]string
	deptSynonyms  []string
	deptIndex     map[string]string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMatcher replaces the default Levenshtein matcher.
func WithMatcher(m *Matcher) Option {
	return func(e *Extractor) {
		if m != nil {
			e.matcher = m
		}
	}
}

// NewExtractor prepares the lookup structures for ref.
func NewExtractor(ref *refdata.Data, opts ...Option) *Extractor {
	norm := NewNormalizer(ref)
	e := &Extractor{
		norm:      norm,
		matcher:   NewMatcher(),
		resolver:  NewResolver(norm),
		churches:  ref.Churches(),
		cityIndex: map[string]string{},
		deptIndex: map[string]string{},
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, c := range e.churches {
		e.churchPhrases = append(e.churchPhrases, newPhrase(c, c))
	}
	for canonical, synonyms := range ref.Cities() {
		for _, name := range append([]string{canonical}, synonyms...) {
			e.cityIndex[key(name)] = canonical
			if p := newPhrase(canonical, name); len(p.words) > 1 {
				e.cityPhrases = append(e.cityPhrases, p)
			}
		}
	}
	sortPhrases(e.churchPhrases)
	sortPhrases(e.cityPhrases)

	for canonical, synonyms := range ref.Table(refdata.KindDepartment) {
		e.deptIndex[key(canonical)] = canonical
		for _, s := range synonyms {
			e.deptIndex[key(s)] = canonical
		}
	}
	for s := range e.deptIndex {
		e.deptSynonyms = append(e.deptSynonyms, s)
	}
	sort.Strings(e.deptSynonyms)
	return e
}

// Normalizer exposes the synonym index.
func (e *Extractor) Normalizer() *Normalizer { return e.norm }

// Matcher exposes the similarity scorer.
func (e *Extractor) Matcher() *Matcher { return e.matcher }

// Parse picks the template path when the message looks like a template and
// the free-text path otherwise.
func (e *Extractor) Parse(text string, correction bool) (models.FieldSet, Source) {
	if IsTemplate(text) {
		return e.ParseTemplate(text), SourceTemplate
	}
	if correction {
		if fs, ok := e.parseIntent(text); ok {
			return fs, SourceIntent
		}
		text = cleanCorrection(text)
	}
	return e.extract(text), SourceFreeText
}

// Extract runs the free-text path. In correction mode the message is first
// cleaned of confirmation-screen boilerplate and checked for an explicit
// single-field update; when one is found only that field is returned.
func (e *Extractor) Extract(text string, correction bool) models.FieldSet {
	if correction {
		if fs, ok := e.parseIntent(text); ok {
			return fs
		}
		text = cleanCorrection(text)
	}
	return e.extract(text)
}

func (e *Extractor) extract(text string) models.FieldSet {
	fs := models.FieldSet{}
	toks := tokenize(text)
	if len(toks) == 0 {
		return fs
	}

	// 1. known church names, longest first
	churchFound := false
	if v, ok := matchPhrases(toks, e.churchPhrases, churchKeywords); ok {
		fs.Set(models.FieldChurch, v)
		churchFound = true
	}
	if v, ok := matchPhrases(toks, e.cityPhrases, cityKeywords); ok {
		fs.Set(models.FieldCountryAndCity, v)
	}

	// 2. keyword + value
	if !churchFound {
		if v, ok := e.keywordValue(toks, churchKeywords); ok {
			if c, _, ok := e.matcher.MatchChurch(v, e.churches, ChurchThreshold); ok {
				v = c
			}
			fs.Set(models.FieldChurch, v)
		}
	}
	if !fs.Has(models.FieldCountryAndCity) {
		if v, ok := e.keywordValue(toks, set("ГОРОД", "CITY")); ok {
			if c, ok := e.cityIndex[key(v)]; ok {
				v = c
			}
			fs.Set(models.FieldCountryAndCity, v)
		}
	}

	// 3. single tokens
	for i, t := range toks {
		if t.used {
			continue
		}
		e.singleToken(fs, toks, i)
	}

	// 4. contact, first valid match only
	e.contact(fs, toks)

	// 5. names from whatever is left
	ru, en := splitNames(toks)
	if ru != "" {
		fs.Set(models.FieldFullNameRU, ru)
	}
	if en != "" {
		fs.Set(models.FieldFullNameEN, en)
	}

	settleRoleDepartment(fs)
	return fs
}

func (e *Extractor) singleToken(fs models.FieldSet, toks []*token, i int) {
	t := toks[i]
	u := t.upper

	if e.norm.Ambiguous(u) {
		a := e.resolver.ResolveAmbiguousToken(u, window(toks, i, contextRadius),
			fs.Value(models.FieldGender) != "", fs.Value(models.FieldSize) != "")
		if a == AssignSize {
			v, _ := e.norm.Normalize(refdata.KindSize, u)
			fs.SetIfUnset(models.FieldSize, v)
		} else {
			v, _ := e.norm.Normalize(refdata.KindGender, u)
			fs.SetIfUnset(models.FieldGender, v)
		}
		t.used = true
		return
	}

	exact := []struct {
		kind  refdata.Kind
		field models.Field
	}{
		{refdata.KindRole, models.FieldRole},
		{refdata.KindGender, models.FieldGender},
		{refdata.KindSize, models.FieldSize},
		{refdata.KindDepartment, models.FieldDepartment},
	}
	for _, x := range exact {
		if v, ok := e.norm.Normalize(x.kind, u); ok {
			fs.SetIfUnset(x.field, v)
			t.used = true
			return
		}
	}
	if c, ok := e.cityIndex[u]; ok {
		fs.SetIfUnset(models.FieldCountryAndCity, c)
		t.used = true
		return
	}
	if noise[u] {
		t.used = true
		return
	}

	if utf8.RuneCountInString(u) < 4 || hasDigit(u) || !hasLetter(u) {
		return
	}
	// a capitalized word next to another one is a name ("Ольга Медина")
	if fs.Value(models.FieldDepartment) == "" && utf8.RuneCountInString(u) >= 5 && !inName(toks, i) {
		if s, _, ok := e.matcher.BestMatch(u, e.deptSynonyms, DepartmentThreshold); ok {
			fs.Set(models.FieldDepartment, e.deptIndex[s])
			t.used = true
			return
		}
	}
	// short words are too often first names ("Вова" is one edit from "Вода")
	if fs.Value(models.FieldChurch) == "" && utf8.RuneCountInString(u) >= 5 {
		if c, _, ok := e.matcher.MatchChurch(u, e.churches, ChurchThreshold); ok {
			fs.Set(models.FieldChurch, c)
			t.used = true
		}
	}
}

// inName reports whether toks[i] and a neighbour both look like parts of a
// personal name.
func inName(toks []*token, i int) bool {
	if !capitalized(toks[i].raw) {
		return false
	}
	for _, j := range []int{i - 1, i + 1} {
		if j >= 0 && j < len(toks) && !toks[j].used && capitalized(toks[j].raw) {
			return true
		}
	}
	return false
}

func capitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r) && !hasDigit(s)
}

func (e *Extractor) contact(fs models.FieldSet, toks []*token) {
	for i, t := range toks {
		if t.used {
			continue
		}
		if strings.Contains(t.raw, "@") {
			if ValidateEmail(t.raw) {
				fs.Set(models.FieldContactInformation, t.raw)
				t.used = true
				return
			}
			continue
		}
		if !phoneLike(t.raw) {
			continue
		}
		// numbers are often typed in groups: "050 123 45 67"
		end := i
		for end+1 < len(toks) && end-i < 4 && !toks[end+1].used && phoneLike(toks[end+1].raw) {
			end++
		}
		for j := end; j >= i; j-- {
			parts := make([]string, 0, j-i+1)
			for k := i; k <= j; k++ {
				parts = append(parts, toks[k].raw)
			}
			if p, ok := NormalizePhone(strings.Join(parts, "")); ok {
				fs.Set(models.FieldContactInformation, p)
				for k := i; k <= j; k++ {
					toks[k].used = true
				}
				return
			}
		}
	}
}

// keywordValue finds "<keyword> <value>" among unused tokens. A quoted
// value may span several tokens.
func (e *Extractor) keywordValue(toks []*token, keywords map[string]bool) (string, bool) {
	for i, t := range toks {
		if t.used || !keywords[t.upper] || i+1 >= len(toks) {
			continue
		}
		next := toks[i+1]
		if next.used || len(e.norm.Kinds(next.upper)) > 0 || phoneLike(next.raw) || !hasLetter(next.raw) {
			continue
		}
		end := i + 1
		if opensQuote(next.orig) && !closesQuote(next.orig) {
			for end+1 < len(toks) && !toks[end].used {
				end++
				if closesQuote(toks[end].orig) {
					break
				}
			}
		}
		parts := make([]string, 0, end-i)
		for k := i + 1; k <= end; k++ {
			parts = append(parts, toks[k].raw)
		}
		for k := i; k <= end; k++ {
			toks[k].used = true
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

func opensQuote(s string) bool {
	return strings.HasPrefix(s, "\"") || strings.HasPrefix(s, "«") || strings.HasPrefix(s, "“")
}

func closesQuote(s string) bool {
	s = strings.TrimRight(s, ".,!?;:")
	return strings.HasSuffix(s, "\"") || strings.HasSuffix(s, "»") || strings.HasSuffix(s, "”")
}

func newPhrase(value, text string) phrase {
	words := strings.Fields(key(text))
	return phrase{value: value, words: words}
}

func sortPhrases(ps []phrase) {
	sort.SliceStable(ps, func(i, j int) bool {
		if len(ps[i].words) != len(ps[j].words) {
			return len(ps[i].words) > len(ps[j].words)
		}
		return utf8.RuneCountInString(ps[i].value) > utf8.RuneCountInString(ps[j].value)
	})
}

// matchPhrases finds the first phrase appearing as a run of unused tokens
// and consumes it together with an adjacent keyword on either side.
func matchPhrases(toks []*token, phrases []phrase, keywords map[string]bool) (string, bool) {
	for _, p := range phrases {
		n := len(p.words)
		for i := 0; i+n <= len(toks); i++ {
			matched := true
			for k := 0; k < n; k++ {
				t := toks[i+k]
				if t.used || t.upper != p.words[k] {
					matched = false
					break
				}
			}
			if !matched {
				continue
			}
			for k := 0; k < n; k++ {
				toks[i+k].used = true
			}
			if i > 0 && !toks[i-1].used && keywords[toks[i-1].upper] {
				toks[i-1].used = true
			}
			if i+n < len(toks) && !toks[i+n].used && keywords[toks[i+n].upper] {
				toks[i+n].used = true
			}
			return p.value, true
		}
	}
	return "", false
}

// splitNames turns residual tokens into the Russian and English names.
// With three or more tokens consecutive runs of the same script are kept
// together, so "Jane СЕРГЕЕВНА Smith" yields coherent runs.
func splitNames(toks []*token) (ru, en string) {
	var rest []*token
	for _, t := range toks {
		if t.used || !hasLetter(t.raw) || strings.Contains(t.raw, "@") {
			continue
		}
		rest = append(rest, t)
	}
	if len(rest) == 0 {
		return "", ""
	}

	var ruParts, enParts []string
	if len(rest) < 3 {
		for _, t := range rest {
			if isLatinWord(t.raw) {
				enParts = append(enParts, t.raw)
			} else {
				ruParts = append(ruParts, t.raw)
			}
		}
	} else {
		for _, run := range scriptRuns(rest) {
			if run.latin {
				enParts = append(enParts, run.words...)
			} else {
				ruParts = append(ruParts, run.words...)
			}
		}
	}
	return tidyName(strings.Join(ruParts, " ")), tidyName(strings.Join(enParts, " "))
}

type run struct {
	latin bool
	words []string
}

func scriptRuns(toks []*token) []run {
	var out []run
	for _, t := range toks {
		latin := isLatinWord(t.raw)
		if len(out) > 0 && out[len(out)-1].latin == latin {
			out[len(out)-1].words = append(out[len(out)-1].words, t.raw)
			continue
		}
		out = append(out, run{latin: latin, words: []string{t.raw}})
	}
	return out
}

// settleRoleDepartment keeps the extracted pair consistent: a department
// without a role implies TEAM, a candidate never carries a department.
func settleRoleDepartment(fs models.FieldSet) {
	dept := fs.Value(models.FieldDepartment)
	switch fs.Value(models.FieldRole) {
	case "":
		if dept != "" {
			fs.Set(models.FieldRole, models.RoleTeam)
		}
	case models.RoleCandidate:
		if fs.Has(models.FieldDepartment) {
			delete(fs, models.FieldDepartment)
		}
	}
}
