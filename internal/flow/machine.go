// Package flow is the conversation state machine. It turns one Event into
// one Reply for a user, serializing turns per user and keeping the session
// in a session.Store between turns.
package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"participants-bot/internal/metrics"
	"participants-bot/internal/parser"
	"participants-bot/internal/participants"
	"participants-bot/internal/refdata"
	"participants-bot/internal/session"
)

// DefaultEditTimeout bounds how long a pending field edit waits for input.
const DefaultEditTimeout = 300 * time.Second

// Notifier delivers replies that are not answers to user input, such as
// edit timeouts.
type Notifier interface {
	Notify(ctx context.Context, userID, chatID int64, r Reply)
}

// Machine dispatches events to the handler of the session's state.
type Machine struct {
	extractor *parser.Extractor
	service   *participants.Service
	ref       *refdata.Data
	store     session.Store
	access    Access
	metrics   *metrics.Metrics
	log       zerolog.Logger

	locker      session.Locker
	timers      *session.Timers
	editTimeout time.Duration
	notifier    Notifier
	now         func() time.Time
	exportURL   string

	handler Handler
}

// Option configures a Machine.
type Option func(*Machine)

func WithAccess(a Access) Option {
	return func(m *Machine) { m.access = a }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

func WithEditTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.editTimeout = d
		}
	}
}

// WithNotifier sets the receiver of timeout notifications.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

// WithExportURL sets the signed CSV link handed out by /export.
func WithExportURL(u string) Option {
	return func(m *Machine) { m.exportURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func New(
	extractor *parser.Extractor,
	service *participants.Service,
	ref *refdata.Data,
	store session.Store,
	log zerolog.Logger,
	opts ...Option,
) *Machine {
	m := &Machine{
		extractor:   extractor,
		service:     service,
		ref:         ref,
		store:       store,
		log:         log.With().Str("component", "flow").Logger(),
		timers:      session.NewTimers(),
		editTimeout: DefaultEditTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.handler = Chain(m.dispatch,
		m.Instrument(),
		Authorize(m.access),
		History(),
		m.ErrorPolicy(),
		Recover(),
	)
	return m
}

// SetNotifier replaces the notifier. Call it before the first event.
func (m *Machine) SetNotifier(n Notifier) {
	m.notifier = n
}

// Handle runs one turn for ev.UserID. Turns of the same user never run
// concurrently. The returned error is only set when the session could not
// be loaded or saved; turn failures are turned into replies.
func (m *Machine) Handle(ctx context.Context, ev Event) (Reply, error) {
	unlock := m.locker.Lock(ev.UserID)
	defer unlock()

	log := m.log.With().
		Str("turn_id", uuid.NewString()).
		Int64("user_id", ev.UserID).
		Logger()
	ctx = log.WithContext(ctx)

	s, err := m.store.Load(ctx, ev.UserID, ev.ChatID)
	if err != nil {
		return Reply{Text: msgStorageFailure}, err
	}
	wasActive := s.Active()

	r, err := m.handler(ctx, &s, ev)
	if err != nil {
		// only reachable when ErrorPolicy is bypassed
		return Reply{Text: msgTechnicalFailure}, err
	}

	switch {
	case s.Active():
		if ev.MessageID != 0 {
			s = session.Track(s, ev.MessageID)
		}
		r.Track = r.Text != ""
	case wasActive:
		var ids []int
		s, ids = session.TakeCleanup(s)
		if ev.MessageID != 0 {
			ids = append(ids, ev.MessageID)
		}
		r.Cleanup = append(r.Cleanup, ids...)
	}

	if !s.Active() {
		// a finished flow leaves nothing behind
		if wasActive {
			if err := m.store.Delete(ctx, ev.UserID); err != nil {
				return r, err
			}
		}
		return r, nil
	}
	if err := m.store.Save(ctx, s); err != nil {
		return r, err
	}
	return r, nil
}

// Track records ids of messages sent during an active flow.
func (m *Machine) Track(ctx context.Context, userID, chatID int64, ids ...int) error {
	unlock := m.locker.Lock(userID)
	defer unlock()

	s, err := m.store.Load(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if !s.Active() {
		return nil
	}
	return m.store.Save(ctx, session.Track(s, ids...))
}

// Stop cancels pending edit timers.
func (m *Machine) Stop() {
	m.timers.Stop()
}

// scheduleEdit starts the edit timer for s and returns its generation.
func (m *Machine) scheduleEdit(s *session.Session) uint64 {
	userID, chatID := s.UserID, s.ChatID
	return m.timers.Schedule(userID, m.editTimeout, func(gen uint64) {
		m.expire(userID, chatID, gen)
	})
}

func (m *Machine) expire(userID, chatID int64, gen uint64) {
	ctx := context.Background()
	r, err := m.Handle(ctx, Event{Kind: EventTimeout, UserID: userID, ChatID: chatID, Generation: gen})
	if err != nil {
		m.log.Error().Err(err).Int64("user_id", userID).Msg("edit timeout")
		return
	}
	if r.Text == "" || m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, userID, chatID, r)
}
