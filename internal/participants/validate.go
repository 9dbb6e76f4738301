package participants

import (
	"slices"
	"unicode/utf8"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
	"participants-bot/internal/parser"
)

const (
	maxNameLen    = 100
	maxChurchLen  = 100
	maxContactLen = 200
)

// Validate checks a record before it is written. The first failing rule is
// returned as an *apperr.ValidationError with a message for the user.
func Validate(p models.Participant) error {
	switch {
	case p.FullNameRU == "":
		return apperr.Invalid(string(models.FieldFullNameRU), "не указано имя на русском")
	case utf8.RuneCountInString(p.FullNameRU) > maxNameLen:
		return apperr.Invalid(string(models.FieldFullNameRU), "имя длиннее 100 символов")
	case utf8.RuneCountInString(p.FullNameEN) > maxNameLen:
		return apperr.Invalid(string(models.FieldFullNameEN), "имя на английском длиннее 100 символов")
	case p.Gender != models.GenderMale && p.Gender != models.GenderFemale:
		return apperr.Invalid(string(models.FieldGender), "не указан пол")
	case p.Size != "" && !slices.Contains(models.Sizes, p.Size):
		return apperr.Invalid(string(models.FieldSize), "неизвестный размер "+p.Size)
	case utf8.RuneCountInString(p.Church) > maxChurchLen:
		return apperr.Invalid(string(models.FieldChurch), "название церкви длиннее 100 символов")
	case p.Role != models.RoleCandidate && p.Role != models.RoleTeam:
		return apperr.Invalid(string(models.FieldRole), "не указана роль")
	case p.Role == models.RoleTeam && p.Department == "":
		return apperr.Invalid(string(models.FieldDepartment), "для команды нужен департамент")
	case p.Role == models.RoleCandidate && p.Department != "":
		return apperr.Invalid(string(models.FieldDepartment), "у кандидата не бывает департамента")
	case utf8.RuneCountInString(p.ContactInformation) > maxContactLen:
		return apperr.Invalid(string(models.FieldContactInformation), "контакт длиннее 200 символов")
	}
	if p.ContactInformation != "" {
		if _, _, ok := parser.ValidateContact(p.ContactInformation); !ok {
			return apperr.Invalid(string(models.FieldContactInformation), "контакт должен быть телефоном или email")
		}
	}
	return nil
}
