package parser

import (
	"strings"
	"unicode/utf8"

	"participants-bot/internal/models"
	"participants-bot/internal/refdata"
)

// ParseField interprets raw as the value of a single known field. It is
// used when the field is already known: a missing-field prompt, a pending
// edit or a template line. ok is false when raw cannot be a value of f;
// a placeholder yields ("", true).
func (e *Extractor) ParseField(f models.Field, raw string) (string, bool) {
	raw = strings.TrimSpace(canonicalText(raw))
	if isPlaceholder(raw) {
		return "", true
	}

	switch f {
	case models.FieldGender:
		return e.norm.Normalize(refdata.KindGender, raw)
	case models.FieldSize:
		return e.norm.Normalize(refdata.KindSize, raw)
	case models.FieldRole:
		return e.norm.Normalize(refdata.KindRole, raw)
	case models.FieldDepartment:
		if v, ok := e.norm.Normalize(refdata.KindDepartment, raw); ok {
			return v, true
		}
		if utf8.RuneCountInString(raw) >= 4 {
			if s, _, ok := e.matcher.BestMatch(key(raw), e.deptSynonyms, DepartmentThreshold); ok {
				return e.deptIndex[s], true
			}
		}
		return "", false
	case models.FieldChurch:
		if c, _, ok := e.matcher.MatchChurch(raw, e.churches, ChurchThreshold); ok {
			return c, true
		}
		return cleanFreeText(raw)
	case models.FieldCountryAndCity:
		if c, ok := e.cityIndex[key(raw)]; ok {
			return c, true
		}
		return cleanFreeText(raw)
	case models.FieldContactInformation:
		v, _, ok := ValidateContact(raw)
		return v, ok
	case models.FieldFullNameRU, models.FieldFullNameEN:
		name := tidyName(strings.Trim(stripEmoji(raw), trimSet))
		if name == "" || !hasLetter(name) {
			return "", false
		}
		return name, true
	case models.FieldSubmittedBy:
		return cleanFreeText(raw)
	}
	return "", false
}

func cleanFreeText(raw string) (string, bool) {
	v := strings.Join(strings.Fields(strings.Trim(raw, trimSet)), " ")
	if v == "" || !hasLetter(v) {
		return "", false
	}
	return v, true
}
