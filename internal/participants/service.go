package participants

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"participants-bot/internal/apperr"
	"participants-bot/internal/metrics"
	"participants-bot/internal/models"
	"participants-bot/internal/parser"
	"participants-bot/internal/util"
)

// DuplicateError reports that a record with the same name already exists.
type DuplicateError struct {
	Existing models.Participant
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("participant %q already exists with id %s", e.Existing.FullNameRU, e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error { return apperr.ErrDuplicate }

// Service implements the record operations used by the conversation flow.
type Service struct {
	repo    Repository
	matcher *parser.Matcher
	metrics *metrics.Metrics
	log     zerolog.Logger

	names util.KeyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithMatcher sets the similarity scorer used by Search.
func WithMatcher(m *parser.Matcher) Option {
	return func(s *Service) { s.matcher = m }
}

// WithMetrics enables write counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires a service around repo.
func NewService(repo Repository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		matcher: parser.NewMatcher(),
		log:     log.With().Str("component", "participants").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckDuplicate returns the record named name, or nil when there is none.
func (s *Service) CheckDuplicate(ctx context.Context, name string) (*models.Participant, error) {
	if NameKey(name) == "" {
		return nil, nil
	}
	p, err := s.repo.GetByName(ctx, name)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("check duplicate", err)
	}
	return p, nil
}

// Create validates and stores p. Unless allowDuplicate is set an existing
// record with the same name yields a *DuplicateError. Check and write run
// under a per-name lock, so two sessions cannot both create the same name.
func (s *Service) Create(ctx context.Context, p models.Participant, allowDuplicate bool) (models.Participant, error) {
	if err := Validate(p); err != nil {
		return models.Participant{}, err
	}

	unlock := s.names.Lock(NameKey(p.FullNameRU))
	defer unlock()

	if !allowDuplicate {
		existing, err := s.CheckDuplicate(ctx, p.FullNameRU)
		if err != nil {
			return models.Participant{}, err
		}
		if existing != nil {
			return models.Participant{}, &DuplicateError{Existing: *existing}
		}
	}

	id, err := s.repo.Add(ctx, p)
	if err != nil {
		return models.Participant{}, apperr.Storage("add participant", err)
	}
	p.ID = id
	s.metrics.IncRecord("created")
	s.log.Info().Str("id", id).Str("role", p.Role).Msg("participant created")
	return p, nil
}

// Update applies the confirmed entries of updates to the stored record id
// and returns the new version together with the changes made. Tentative
// entries are ignored. Nothing is written when there are no changes.
func (s *Service) Update(ctx context.Context, id string, updates models.FieldSet) (models.Participant, []Change, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return models.Participant{}, nil, err
	}
	confirmed := updates.Confirmed()
	changes := DetectChanges(*old, confirmed)
	if len(changes) == 0 {
		return *old, nil, nil
	}
	updated := Apply(*old, confirmed)
	if err := Validate(updated); err != nil {
		return models.Participant{}, nil, err
	}
	if err := s.repo.UpdateFields(ctx, id, ChangedFields(changes)); err != nil {
		return models.Participant{}, nil, apperr.Storage("update fields", err)
	}
	s.metrics.IncRecord("updated")
	s.log.Info().Str("id", id).Int("changes", len(changes)).Msg("participant updated")
	return updated, changes, nil
}

// Get loads the record id.
func (s *Service) Get(ctx context.Context, id string) (*models.Participant, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("get participant", err)
	}
	return p, nil
}

// Delete removes the record id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Storage("delete participant", err)
	}
	s.metrics.IncRecord("deleted")
	s.log.Info().Str("id", id).Msg("participant deleted")
	return nil
}

// All returns every stored record.
func (s *Service) All(ctx context.Context) ([]models.Participant, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, apperr.Storage("list participants", err)
	}
	return all, nil
}

// AsDuplicate extracts the existing record from a duplicate error.
func AsDuplicate(err error) (models.Participant, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.Existing, true
	}
	return models.Participant{}, false
}
