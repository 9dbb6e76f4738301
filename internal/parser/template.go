package parser

import (
	"regexp"
	"strings"
	"unicode"

	"participants-bot/internal/models"
)

// Placeholders marking a field as explicitly not specified.
const (
	PlaceholderDash  = "➖ Не указано"
	PlaceholderCross = "❌ Не указано"
)

const notSpecified = "НЕ УКАЗАНО"

// Label ties a template caption to its field.
type Label struct {
	Text  string
	Field models.Field
}

// Labels lists the template labels in display order.
var Labels = func() []Label {
	out := make([]Label, 0, len(models.AllFields))
	for _, f := range models.AllFields {
		out = append(out, Label{Text: f.Label(), Field: f})
	}
	return out
}()

var (
	labelAlternation = func() string {
		parts := make([]string, 0, len(Labels))
		for _, l := range Labels {
			parts = append(parts, regexp.QuoteMeta(l.Text))
		}
		return strings.Join(parts, "|")
	}()

	labelRe     = regexp.MustCompile(`(?i)(?:^|[\n;,])[^\pL\n;,]*(` + labelAlternation + `)\s*:`)
	labelLineRe = regexp.MustCompile(`(?is)^[^\pL]*(` + labelAlternation + `)\s*:\s*(.*)$`)
)

// minTemplateLabels is the number of distinct labels that switches a
// message to the template path.
const minTemplateLabels = 3

// IsTemplate reports whether text carries at least three distinct
// "Label:" patterns.
func IsTemplate(text string) bool {
	seen := map[models.Field]bool{}
	for _, m := range labelRe.FindAllStringSubmatch(canonicalText(text), -1) {
		if f, ok := fieldForLabel(m[1]); ok {
			seen[f] = true
		}
	}
	return len(seen) >= minTemplateLabels
}

func fieldForLabel(label string) (models.Field, bool) {
	for _, l := range Labels {
		if strings.EqualFold(l.Text, strings.TrimSpace(label)) {
			return l.Field, true
		}
	}
	return "", false
}

// isPlaceholder reports whether v is empty or one of the "not specified"
// markers.
func isPlaceholder(v string) bool {
	v = strings.TrimSpace(stripEmoji(v))
	switch strings.ToUpper(v) {
	case "", notSpecified, "-", "—", "–":
		return true
	}
	return false
}

// ParseTemplate parses "Label: value" lines. Lines are split on newlines
// and semicolons, then on commas; a comma part that does not start with a
// label continues the previous value, so "Город: Хайфа, Израиль" stays one
// value.
//
// An absent label leaves the field out of the result. A label with an
// empty or placeholder value yields an explicit clear. Values of
// enumerated fields that cannot be normalized are left out.
func (e *Extractor) ParseTemplate(text string) models.FieldSet {
	type pair struct {
		field models.Field
		value string
	}
	var pairs []pair

	segments := strings.FieldsFunc(canonicalText(text), func(r rune) bool { return r == '\n' || r == ';' })
	for _, seg := range segments {
		for _, part := range strings.Split(seg, ",") {
			if m := labelLineRe.FindStringSubmatch(part); m != nil {
				if f, ok := fieldForLabel(m[1]); ok {
					pairs = append(pairs, pair{field: f, value: strings.TrimSpace(m[2])})
					continue
				}
			}
			if len(pairs) > 0 && strings.TrimSpace(part) != "" {
				last := &pairs[len(pairs)-1]
				if last.value == "" {
					last.value = strings.TrimSpace(part)
				} else {
					last.value += ", " + strings.TrimSpace(part)
				}
			}
		}
	}

	fs := models.FieldSet{}
	for _, p := range pairs {
		if isPlaceholder(p.value) {
			fs.Clear(p.field)
			continue
		}
		if v, ok := e.templateValue(p.field, p.value); ok {
			fs.Set(p.field, v)
		}
	}
	return fs
}

func (e *Extractor) templateValue(f models.Field, raw string) (string, bool) {
	switch f {
	case models.FieldChurch:
		for _, c := range e.churches {
			if strings.EqualFold(c, raw) {
				return c, true
			}
		}
		return raw, true
	case models.FieldContactInformation:
		if v, _, ok := ValidateContact(raw); ok {
			return v, true
		}
		return raw, true
	case models.FieldSubmittedBy:
		return raw, true
	}
	return e.ParseField(f, raw)
}

// FormatTemplate renders p as template text, one "Label: value" line per
// field. Empty values are rendered as PlaceholderDash.
func FormatTemplate(p models.Participant) string {
	var b strings.Builder
	for i, l := range Labels {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
		b.WriteString(": ")
		b.WriteString(DisplayValue(l.Field, p.Get(l.Field)))
	}
	return b.String()
}

// DisplayValue renders a stored value for people.
func DisplayValue(f models.Field, v string) string {
	if v == "" {
		return PlaceholderDash
	}
	switch f {
	case models.FieldGender:
		switch v {
		case models.GenderMale:
			return "Мужской"
		case models.GenderFemale:
			return "Женский"
		}
	case models.FieldRole:
		switch v {
		case models.RoleCandidate:
			return "Кандидат"
		case models.RoleTeam:
			return "Команда"
		}
	}
	return v
}

// trimLabelPrefix drops a leading "Label:" from s.
func trimLabelPrefix(s string) (models.Field, string, bool) {
	m := labelLineRe.FindStringSubmatch(s)
	if m == nil {
		return "", s, false
	}
	f, ok := fieldForLabel(m[1])
	if !ok {
		return "", s, false
	}
	return f, strings.TrimFunc(m[2], unicode.IsSpace), true
}
