package participants

import (
	"fmt"

	"participants-bot/internal/models"
)

// Merge writes the non-empty values of updates over existing. Explicit
// clears in updates are ignored here; use Apply for edits that may clear.
// The role/department rule is applied when updates carries a role.
func Merge(existing models.Participant, updates models.FieldSet) models.Participant {
	merged := existing
	for _, f := range updates.Fields() {
		if v := updates.Value(f); v != "" {
			merged.Set(f, v)
		}
	}
	if updates.Value(models.FieldRole) != "" {
		models.EnforceRoleDepartment(existing.Role, &merged, updates.Value(models.FieldDepartment) != "")
	}
	return merged
}

// Apply writes every field present in updates over existing, explicit
// clears included, then applies the role/department rule.
func Apply(existing models.Participant, updates models.FieldSet) models.Participant {
	out := existing
	updates.ApplyTo(&out)
	return out
}

// Change is one field difference between two versions of a record.
type Change struct {
	Field models.Field
	Old   string
	New   string
}

// String renders the change as "Field: old → new", "—" standing for an
// empty value.
func (c Change) String() string {
	return fmt.Sprintf("%s: %s → %s", c.Field, dash(c.Old), dash(c.New))
}

func dash(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

// Diff lists the fields that differ between old and updated, in display
// order.
func Diff(old, updated models.Participant) []Change {
	var out []Change
	for _, f := range models.AllFields {
		if a, b := old.Get(f), updated.Get(f); a != b {
			out = append(out, Change{Field: f, Old: a, New: b})
		}
	}
	return out
}

// DetectChanges reports what applying updates to old would change. Forced
// department clears caused by a role switch are included even when updates
// does not mention the department.
func DetectChanges(old models.Participant, updates models.FieldSet) []Change {
	return Diff(old, Apply(old, updates))
}

// ChangedFields turns a change list into the partial update accepted by
// Repository.UpdateFields.
func ChangedFields(changes []Change) map[models.Field]string {
	out := make(map[models.Field]string, len(changes))
	for _, c := range changes {
		out[c.Field] = c.New
	}
	return out
}
