package parser

import (
	"strings"
	"unicode/utf8"

	"participants-bot/internal/models"
	"participants-bot/internal/refdata"
)

// correctionNoise are filler words of edit requests ("поменяй пол на М").
var correctionNoise = set(
	"ИСПРАВИТЬ", "ИСПРАВЬ", "ИЗМЕНИТЬ", "ИЗМЕНИ", "ПОМЕНЯТЬ", "ПОМЕНЯЙ", "СМЕНИТЬ", "СМЕНИ",
	"ПОСТАВЬ", "ПОСТАВИТЬ", "УКАЖИ", "УКАЖИТЕ", "НА", "ПОЖАЛУЙСТА", "НУЖНО", "НАДО", "ХОЧУ",
	"CHANGE", "SET", "TO", "PLEASE", "FIX", "UPDATE",
)

// fieldKeywords name a field at the start of an edit request.
var fieldKeywords = map[string]models.Field{
	"ИМЯ":         models.FieldFullNameRU,
	"ФИО":         models.FieldFullNameRU,
	"NAME":        models.FieldFullNameEN,
	"ПОЛ":         models.FieldGender,
	"GENDER":      models.FieldGender,
	"РАЗМЕР":      models.FieldSize,
	"SIZE":        models.FieldSize,
	"ЦЕРКОВЬ":     models.FieldChurch,
	"CHURCH":      models.FieldChurch,
	"РОЛЬ":        models.FieldRole,
	"ROLE":        models.FieldRole,
	"ДЕПАРТАМЕНТ": models.FieldDepartment,
	"ОТДЕЛ":       models.FieldDepartment,
	"СЛУЖЕНИЕ":    models.FieldDepartment,
	"DEPARTMENT":  models.FieldDepartment,
	"ГОРОД":       models.FieldCountryAndCity,
	"CITY":        models.FieldCountryAndCity,
	"КОНТАКТ":     models.FieldContactInformation,
	"КОНТАКТЫ":    models.FieldContactInformation,
	"ТЕЛЕФОН":     models.FieldContactInformation,
	"ТЕЛ":         models.FieldContactInformation,
	"PHONE":       models.FieldContactInformation,
	"EMAIL":       models.FieldContactInformation,
	"ПОЧТА":       models.FieldContactInformation,
}

var englishMarkers = set("АНГЛ", "(АНГЛ)", "ПО-АНГЛИЙСКИ", "АНГЛИЙСКОЕ", "EN", "ENG")

// parseIntent looks for an explicit single-field update in a correction
// message. ok is true when the message names or implies one field; the
// returned set may then be empty if the value could not be understood.
func (e *Extractor) parseIntent(text string) (models.FieldSet, bool) {
	text = strings.TrimSpace(stripEmoji(canonicalText(text)))
	if text == "" {
		return nil, false
	}

	if f, rest, ok := trimLabelPrefix(text); ok && !strings.Contains(rest, "\n") {
		return e.single(f, rest), true
	}

	words := dropNoise(strings.Fields(text))
	if len(words) == 0 {
		return nil, false
	}

	if f, ok := fieldKeywords[strings.ToUpper(strings.Trim(words[0], trimSet))]; ok && len(words) > 1 {
		rest := words[1:]
		if f == models.FieldFullNameRU && englishMarkers[strings.ToUpper(rest[0])] {
			f, rest = models.FieldFullNameEN, rest[1:]
		}
		if len(rest) == 0 {
			return models.FieldSet{}, true
		}
		return e.single(f, strings.Join(rest, " ")), true
	}

	joined := strings.Join(words, " ")
	if v, _, ok := ValidateContact(joined); ok {
		fs := models.FieldSet{}
		fs.Set(models.FieldContactInformation, v)
		return fs, true
	}
	if len(words) != 1 {
		return nil, false
	}

	w := strings.Trim(words[0], trimSet)
	fs := models.FieldSet{}
	switch {
	case e.norm.Ambiguous(w):
		v, _ := e.norm.Normalize(refdata.KindGender, w)
		fs.Set(models.FieldGender, v)
	default:
		found := false
		for _, x := range []struct {
			kind  refdata.Kind
			field models.Field
		}{
			{refdata.KindRole, models.FieldRole},
			{refdata.KindGender, models.FieldGender},
			{refdata.KindSize, models.FieldSize},
			{refdata.KindDepartment, models.FieldDepartment},
		} {
			if v, ok := e.norm.Normalize(x.kind, w); ok {
				fs.Set(x.field, v)
				found = true
				break
			}
		}
		if !found {
			if c, ok := e.cityIndex[key(w)]; ok {
				fs.Set(models.FieldCountryAndCity, c)
			} else if utf8.RuneCountInString(w) >= 4 && !hasDigit(w) {
				if s, _, ok := e.matcher.BestMatch(key(w), e.deptSynonyms, DepartmentThreshold); ok {
					fs.Set(models.FieldDepartment, e.deptIndex[s])
				}
			}
		}
	}
	if fs.Empty() {
		return nil, false
	}
	impliedTeam(fs)
	return fs, true
}

func (e *Extractor) single(f models.Field, raw string) models.FieldSet {
	fs := models.FieldSet{}
	v, ok := e.ParseField(f, raw)
	switch {
	case !ok:
		return fs
	case v == "":
		fs.Clear(f)
	default:
		fs.Set(f, v)
	}
	impliedTeam(fs)
	return fs
}

// impliedTeam sets the TEAM role when a correction names only a department.
func impliedTeam(fs models.FieldSet) {
	if fs.Value(models.FieldDepartment) != "" && !fs.Has(models.FieldRole) {
		fs.Set(models.FieldRole, models.RoleTeam)
	}
}

// cleanCorrection removes confirmation-screen boilerplate from text:
// emoji, placeholders, template labels and filler words.
func cleanCorrection(text string) string {
	text = stripEmoji(canonicalText(text))
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if _, rest, ok := trimLabelPrefix(line); ok {
			line = rest
		}
		if isPlaceholder(line) {
			continue
		}
		line = strings.ReplaceAll(line, "Не указано", "")
		lines = append(lines, strings.Join(dropNoise(strings.Fields(line)), " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func dropNoise(words []string) []string {
	out := words[:0:0]
	for _, w := range words {
		if correctionNoise[strings.ToUpper(strings.Trim(w, trimSet))] {
			continue
		}
		out = append(out, w)
	}
	return out
}
