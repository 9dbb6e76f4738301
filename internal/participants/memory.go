package participants

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
)

// MemoryRepository keeps records in process memory. Ids are sequential
// integers starting at 1.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int
	byID   map[string]models.Participant
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byID: map[string]models.Participant{}}
}

func (r *MemoryRepository) Add(_ context.Context, p models.Participant) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := strconv.Itoa(r.nextID)
	r.nextID++
	p.ID = id
	r.byID[id] = p
	return id, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, apperr.NotFound("participant " + id)
	}
	return &p, nil
}

// GetByName returns the oldest record whose Russian name matches.
func (r *MemoryRepository) GetByName(ctx context.Context, name string) (*models.Participant, error) {
	all, _ := r.GetAll(ctx)
	k := NameKey(name)
	for _, p := range all {
		if NameKey(p.FullNameRU) == k {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("participant " + name)
}

// GetAll returns the records ordered by id.
func (r *MemoryRepository) GetAll(_ context.Context) ([]models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Participant, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, p models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return apperr.NotFound("participant " + p.ID)
	}
	r.byID[p.ID] = p
	return nil
}

func (r *MemoryRepository) UpdateFields(_ context.Context, id string, fields map[models.Field]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return apperr.NotFound("participant " + id)
	}
	for f, v := range fields {
		p.Set(f, v)
	}
	r.byID[id] = p
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return apperr.NotFound("participant " + id)
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok, nil
}
