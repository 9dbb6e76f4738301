package models

// FieldStatus tells how far a parsed value has progressed.
type FieldStatus uint8

const (
	FieldUnset FieldStatus = iota
	FieldTentative
	FieldConfirmed
)

// FieldValue is a single entry of a FieldSet.
type FieldValue struct {
	Value  string
	Status FieldStatus
}

// FieldSet is the transient result of parsing one message. A field that is
// present with an empty value is an explicit clear; an absent field leaves
// the target untouched.
type FieldSet map[Field]FieldValue

// Set records a tentative value.
func (fs FieldSet) Set(f Field, v string) {
	fs[f] = FieldValue{Value: v, Status: FieldTentative}
}

// SetIfUnset records v unless f already carries a non-empty value.
func (fs FieldSet) SetIfUnset(f Field, v string) bool {
	if fs.Value(f) != "" {
		return false
	}
	fs.Set(f, v)
	return true
}

// Clear records an explicit clear of f.
func (fs FieldSet) Clear(f Field) {
	fs[f] = FieldValue{Status: FieldTentative}
}

// Has reports whether f is present, including explicit clears.
func (fs FieldSet) Has(f Field) bool {
	v, ok := fs[f]
	return ok && v.Status != FieldUnset
}

// Value returns the value of f or "".
func (fs FieldSet) Value(f Field) string {
	return fs[f].Value
}

// Status returns the status of f.
func (fs FieldSet) Status(f Field) FieldStatus {
	return fs[f].Status
}

// Confirm promotes every tentative value to confirmed.
func (fs FieldSet) Confirm() {
	for f, v := range fs {
		if v.Status == FieldTentative {
			v.Status = FieldConfirmed
			fs[f] = v
		}
	}
}

// Confirmed returns the confirmed entries only.
func (fs FieldSet) Confirmed() FieldSet {
	out := FieldSet{}
	for f, v := range fs {
		if v.Status == FieldConfirmed {
			out[f] = v
		}
	}
	return out
}

// Fields returns the present fields in display order.
func (fs FieldSet) Fields() []Field {
	var out []Field
	for _, f := range AllFields {
		if fs.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether nothing was parsed.
func (fs FieldSet) Empty() bool {
	return len(fs.Fields()) == 0
}

// ApplyTo writes every present field into p, explicit clears included, and
// then applies the role/department rule.
func (fs FieldSet) ApplyTo(p *Participant) {
	prevRole := p.Role
	for _, f := range fs.Fields() {
		p.Set(f, fs.Value(f))
	}
	if fs.Has(FieldRole) {
		EnforceRoleDepartment(prevRole, p, fs.Value(FieldDepartment) != "")
	}
}

// FromParticipant builds a FieldSet holding the non-empty fields of p.
func FromParticipant(p Participant) FieldSet {
	fs := FieldSet{}
	for _, f := range AllFields {
		if v := p.Get(f); v != "" {
			fs.Set(f, v)
		}
	}
	return fs
}
