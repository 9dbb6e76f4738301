package models

// Field names a ParticipantRecord attribute.
type Field string

const (
	FieldFullNameRU         Field = "FullNameRU"
	FieldFullNameEN         Field = "FullNameEN"
	FieldGender             Field = "Gender"
	FieldSize               Field = "Size"
	FieldChurch             Field = "Church"
	FieldRole               Field = "Role"
	FieldDepartment         Field = "Department"
	FieldCountryAndCity     Field = "CountryAndCity"
	FieldSubmittedBy        Field = "SubmittedBy"
	FieldContactInformation Field = "ContactInformation"
)

// AllFields lists the record fields in display order.
var AllFields = []Field{
	FieldFullNameRU,
	FieldFullNameEN,
	FieldGender,
	FieldSize,
	FieldChurch,
	FieldRole,
	FieldDepartment,
	FieldCountryAndCity,
	FieldSubmittedBy,
	FieldContactInformation,
}

// Label is the Russian caption used in prompts and change reports.
func (f Field) Label() string {
	switch f {
	case FieldFullNameRU:
		return "Имя (рус)"
	case FieldFullNameEN:
		return "Имя (англ)"
	case FieldGender:
		return "Пол"
	case FieldSize:
		return "Размер"
	case FieldChurch:
		return "Церковь"
	case FieldRole:
		return "Роль"
	case FieldDepartment:
		return "Департамент"
	case FieldCountryAndCity:
		return "Город"
	case FieldSubmittedBy:
		return "Кто подал"
	case FieldContactInformation:
		return "Контакты"
	}
	return string(f)
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, k := range AllFields {
		if k == f {
			return true
		}
	}
	return false
}

type Gender = string
type Role = string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"

	RoleCandidate Role = "CANDIDATE"
	RoleTeam      Role = "TEAM"
)

// Sizes holds the canonical clothing sizes, smallest first.
var Sizes = []string{"XS", "S", "M", "L", "XL", "XXL", "3XL"}

// Participant is the persisted record of a single event participant.
type Participant struct {
	ID                 string `json:"id,omitempty"`
	FullNameRU         string `json:"full_name_ru"`
	FullNameEN         string `json:"full_name_en,omitempty"`
	Gender             string `json:"gender,omitempty"`
	Size               string `json:"size,omitempty"`
	Church             string `json:"church,omitempty"`
	Role               string `json:"role,omitempty"`
	Department         string `json:"department,omitempty"`
	CountryAndCity     string `json:"country_and_city,omitempty"`
	SubmittedBy        string `json:"submitted_by,omitempty"`
	ContactInformation string `json:"contact_information,omitempty"`
}

// Get returns the value of field f.
func (p *Participant) Get(f Field) string {
	switch f {
	case FieldFullNameRU:
		return p.FullNameRU
	case FieldFullNameEN:
		return p.FullNameEN
	case FieldGender:
		return p.Gender
	case FieldSize:
		return p.Size
	case FieldChurch:
		return p.Church
	case FieldRole:
		return p.Role
	case FieldDepartment:
		return p.Department
	case FieldCountryAndCity:
		return p.CountryAndCity
	case FieldSubmittedBy:
		return p.SubmittedBy
	case FieldContactInformation:
		return p.ContactInformation
	}
	return ""
}

// Set assigns v to field f. Unknown fields are ignored.
func (p *Participant) Set(f Field, v string) {
	switch f {
	case FieldFullNameRU:
		p.FullNameRU = v
	case FieldFullNameEN:
		p.FullNameEN = v
	case FieldGender:
		p.Gender = v
	case FieldSize:
		p.Size = v
	case FieldChurch:
		p.Church = v
	case FieldRole:
		p.Role = v
	case FieldDepartment:
		p.Department = v
	case FieldCountryAndCity:
		p.CountryAndCity = v
	case FieldSubmittedBy:
		p.SubmittedBy = v
	case FieldContactInformation:
		p.ContactInformation = v
	}
}

// MissingFields returns the required-for-collection fields that are still
// empty, in prompting order: name, gender, size, church, role, then
// department when the role is TEAM.
func (p *Participant) MissingFields() []Field {
	var out []Field
	if p.FullNameRU == "" {
		out = append(out, FieldFullNameRU)
	}
	if p.Gender == "" {
		out = append(out, FieldGender)
	}
	if p.Size == "" {
		out = append(out, FieldSize)
	}
	if p.Church == "" {
		out = append(out, FieldChurch)
	}
	if p.Role == "" {
		out = append(out, FieldRole)
	}
	if p.Role == RoleTeam && p.Department == "" {
		out = append(out, FieldDepartment)
	}
	return out
}

// EnforceRoleDepartment applies the role/department side effect after the
// role moved from prevRole to p.Role. deptGiven tells whether the same
// update carried an explicit department.
//
// TEAM -> CANDIDATE always clears the department. Entering TEAM without a
// department in the update clears it too, so a stale value never survives;
// the flow then asks for it.
func EnforceRoleDepartment(prevRole string, p *Participant, deptGiven bool) {
	switch {
	case p.Role == RoleCandidate:
		p.Department = ""
	case p.Role == RoleTeam && prevRole != RoleTeam && !deptGiven:
		p.Department = ""
	}
}
