package participants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"participants-bot/internal/models"
)

func teamRecord() models.Participant {
	return models.Participant{
		ID:         "7",
		FullNameRU: "Анна Иванова",
		Gender:     models.GenderFemale,
		Size:       "S",
		Church:     "Благодать",
		Role:       models.RoleTeam,
		Department: "Worship",
	}
}

func fieldSet(kv ...string) models.FieldSet {
	fs := models.FieldSet{}
	for i := 0; i+1 < len(kv); i += 2 {
		fs.Set(models.Field(kv[i]), kv[i+1])
	}
	return fs
}

func TestMergeOnlyNonEmpty(t *testing.T) {
	existing := teamRecord()
	updates := fieldSet(string(models.FieldSize), "L", string(models.FieldChurch), "")
	updates.Clear(models.FieldCountryAndCity)

	merged := Merge(existing, updates)

	assert.Equal(t, "L", merged.Size)
	assert.Equal(t, "Благодать", merged.Church, "empty value does not overwrite")
	assert.Equal(t, "Worship", merged.Department)
}

func TestMergeRoleToCandidateClearsDepartment(t *testing.T) {
	merged := Merge(teamRecord(), fieldSet(string(models.FieldRole), models.RoleCandidate))

	assert.Equal(t, models.RoleCandidate, merged.Role)
	assert.Equal(t, "", merged.Department)
}

func TestMergeIntoTeamWithoutDepartment(t *testing.T) {
	existing := teamRecord()
	existing.Role = models.RoleCandidate
	existing.Department = "Kitchen" // stale

	merged := Merge(existing, fieldSet(string(models.FieldRole), models.RoleTeam))
	assert.Equal(t, "", merged.Department)

	merged = Merge(existing, fieldSet(string(models.FieldRole), models.RoleTeam, string(models.FieldDepartment), "Media"))
	assert.Equal(t, "Media", merged.Department)
}

func TestDetectChangesRoleSwitch(t *testing.T) {
	changes := DetectChanges(teamRecord(), fieldSet(string(models.FieldRole), models.RoleCandidate))

	require.Len(t, changes, 2)
	assert.Equal(t, "Role: TEAM → CANDIDATE", changes[0].String())
	assert.Equal(t, "Department: Worship → —", changes[1].String())
}

func TestDetectChangesIdempotent(t *testing.T) {
	existing := teamRecord()

	changes := DetectChanges(existing, models.FromParticipant(existing))

	assert.Empty(t, changes)
	assert.Equal(t, existing, Merge(existing, models.FromParticipant(existing)))
}

func TestDetectChangesReportsClear(t *testing.T) {
	updates := models.FieldSet{}
	updates.Clear(models.FieldChurch)

	changes := DetectChanges(teamRecord(), updates)

	require.Len(t, changes, 1)
	assert.Equal(t, "Church: Благодать → —", changes[0].String())
	assert.Equal(t, map[models.Field]string{models.FieldChurch: ""}, ChangedFields(changes))
}
