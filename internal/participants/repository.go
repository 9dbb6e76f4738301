// Package participants owns the participant records: the storage contract,
// duplicate detection, merging and search.
package participants

import (
	"context"
	"strings"

	"participants-bot/internal/models"
)

// Repository is the storage contract every backend implements.
//
// GetByID and GetByName return an error wrapping apperr.ErrNotFound when
// nothing matches. Backend failures are wrapped with apperr.Storage.
type Repository interface {
	Add(ctx context.Context, p models.Participant) (string, error)
	GetByID(ctx context.Context, id string) (*models.Participant, error)
	GetByName(ctx context.Context, name string) (*models.Participant, error)
	GetAll(ctx context.Context) ([]models.Participant, error)
	Update(ctx context.Context, p models.Participant) error
	UpdateFields(ctx context.Context, id string, fields map[models.Field]string) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// NameKey folds a name for comparison: case, repeated whitespace and ё/е
// differences are ignored.
func NameKey(name string) string {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	return strings.ReplaceAll(name, "ё", "е")
}
