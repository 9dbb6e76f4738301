package participants

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewService(repo, zerolog.Nop()), repo
}

func TestCreateAndDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, teamRecord(), false)
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)

	again := teamRecord()
	again.FullNameRU = "анна  иванова"
	_, err = svc.Create(ctx, again, false)
	require.Error(t, err)
	assert.True(t, apperr.IsDuplicate(err))
	existing, ok := AsDuplicate(err)
	require.True(t, ok)
	assert.Equal(t, "1", existing.ID)

	forced, err := svc.Create(ctx, again, true)
	require.NoError(t, err)
	assert.Equal(t, "2", forced.ID)
}

func TestCreateValidates(t *testing.T) {
	svc, repo := newTestService(t)
	p := teamRecord()
	p.Department = ""

	_, err := svc.Create(context.Background(), p, false)

	assert.True(t, apperr.IsValidation(err))
	all, _ := repo.GetAll(context.Background())
	assert.Empty(t, all)
}

func TestCreateConcurrentSameName(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var dups int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, teamRecord(), false)
			if apperr.IsDuplicate(err) {
				mu.Lock()
				dups++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	all, _ := repo.GetAll(ctx)
	assert.Len(t, all, 1)
	assert.Equal(t, 9, dups)
}

func TestCheckDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.CheckDuplicate(ctx, "Анна Иванова")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.Create(ctx, teamRecord(), false)
	require.NoError(t, err)

	got, err = svc.CheckDuplicate(ctx, "АННА ИВАНОВА")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.ID)

	got, err = svc.CheckDuplicate(ctx, "  ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateRoleSwitch(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, teamRecord(), false)
	require.NoError(t, err)

	updates := models.FieldSet{}
	updates.Set(models.FieldRole, models.RoleCandidate)
	updates.Confirm()
	updated, changes, err := svc.Update(ctx, created.ID, updates)
	require.NoError(t, err)

	assert.Equal(t, models.RoleCandidate, updated.Role)
	assert.Equal(t, "", updated.Department)
	require.Len(t, changes, 2)
	assert.Equal(t, "Department: Worship → —", changes[1].String())

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Department)
	assert.Equal(t, models.RoleCandidate, stored.Role)
}

func TestUpdateNoChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, teamRecord(), false)
	require.NoError(t, err)

	same := models.FromParticipant(created)
	same.Confirm()
	_, changes, err := svc.Update(ctx, created.ID, same)

	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, teamRecord(), false)
	require.NoError(t, err)

	updates := models.FieldSet{}
	updates.Clear(models.FieldFullNameRU)
	updates.Confirm()
	_, _, err = svc.Update(ctx, created.ID, updates)

	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateIgnoresTentative(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, teamRecord(), false)
	require.NoError(t, err)

	updates := models.FieldSet{}
	updates.Set(models.FieldSize, "XL")
	updates.Confirm()
	updates.Set(models.FieldChurch, "Грейс")
	updated, changes, err := svc.Update(ctx, created.ID, updates)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, models.FieldSize, changes[0].Field)
	assert.Equal(t, created.Church, updated.Church)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "XL", stored.Size)
	assert.Equal(t, created.Church, stored.Church)

	onlyTentative := models.FieldSet{}
	onlyTentative.Set(models.FieldSize, "S")
	_, changes, err = svc.Update(ctx, created.ID, onlyTentative)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestGetDeleteNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "42")
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(svc.Delete(ctx, "42")))
	_, _, err = svc.Update(ctx, "42", models.FieldSet{})
	assert.True(t, apperr.IsNotFound(err))
}

type failingRepo struct {
	*MemoryRepository
}

var errBackend = errors.New("backend down")

func (failingRepo) Add(context.Context, models.Participant) (string, error) { return "", errBackend }

func TestCreateStorageFailure(t *testing.T) {
	svc := NewService(failingRepo{NewMemoryRepository()}, zerolog.Nop())

	_, err := svc.Create(context.Background(), teamRecord(), false)

	assert.True(t, apperr.IsStorage(err))
	assert.ErrorIs(t, err, errBackend)
}
