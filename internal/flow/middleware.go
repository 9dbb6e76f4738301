package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"participants-bot/internal/apperr"
	"participants-bot/internal/session"
)

// Handler runs one turn against a session. It may replace *s.
type Handler func(ctx context.Context, s *session.Session, ev Event) (Reply, error)

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain applies mws so that the first one is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a panic into a technical error.
func Recover() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s *session.Session, ev Event) (r Reply, err error) {
			defer func() {
				if p := recover(); p != nil {
					zerolog.Ctx(ctx).Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("handler panic")
					r, err = Reply{}, apperr.Technical("handle "+ev.Action(), fmt.Errorf("panic: %v", p))
				}
			}()
			return next(ctx, s, ev)
		}
	}
}

// Authorize rejects events the sender may not perform. The session is left
// untouched.
func Authorize(access Access) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
			if !access.Allows(ev.UserID, required(ev)) {
				zerolog.Ctx(ctx).Warn().Str("action", ev.Action()).Msg("access denied")
				if ev.Kind == EventCallback {
					return Reply{Notice: msgDenied}, nil
				}
				return Reply{Text: msgDenied}, nil
			}
			return next(ctx, s, ev)
		}
	}
}

// History records the action of every turn in the rolling history.
func History() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
			r, err := next(ctx, s, ev)
			if ev.Kind != EventTimeout || !r.Empty() {
				*s = session.Record(*s, ev.Action())
			}
			return r, err
		}
	}
}

// ErrorPolicy applies the error taxonomy:
//
//   - validation: the session is restored to its state before the turn and
//     the same prompt is repeated with the message;
//   - not found: the session is restored and the vanished reference is
//     dropped;
//   - duplicate: routed to the duplicate choice;
//   - storage: everything is cleared and the user is told to start over;
//   - technical: everything is cleared and a one-shot recovery is offered.
func (m *Machine) ErrorPolicy() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
			before := s.Clone()
			r, err := next(ctx, s, ev)
			if err == nil {
				return r, nil
			}

			kind := apperr.Classify(err)
			m.metrics.IncError(string(kind))
			log := zerolog.Ctx(ctx)

			switch kind {
			case apperr.KindValidation:
				log.Debug().Err(err).Msg("validation failed")
				*s = before
				return m.withNotice(m.prompt(*s), "⚠️ "+validationText(err)), nil

			case apperr.KindNotFound:
				log.Info().Err(err).Msg("record not found")
				*s = dropReference(before)
				return m.withNotice(m.prompt(*s), msgNotFound), nil

			case apperr.KindDuplicate:
				*s = before
				return m.routeDuplicate(s, err)

			case apperr.KindStorage:
				log.Error().Err(err).Msg("storage failure")
				m.timers.Cancel(s.UserID)
				*s = session.Fail(before, false)
				return Reply{Text: msgStorageFailure, Buttons: menuButtons()}, nil

			default:
				log.Error().Err(err).Msg("technical failure")
				m.timers.Cancel(s.UserID)
				*s = session.Fail(before, true)
				if s.State == session.StateRecovering {
					return m.prompt(*s), nil
				}
				return Reply{Text: msgTechnicalFailure, Buttons: menuButtons()}, nil
			}
		}
	}
}

// dropReference forgets the record that vanished.
func dropReference(s session.Session) session.Session {
	switch s.State {
	case session.StateSelectingResult, session.StateChoosingAction, session.StateExecutingAction:
		return session.StartSearch(s)
	case session.StateConfirmingDuplicate:
		s = s.Clone()
		s.Duplicate = nil
		s.AllowDuplicate = true
		return session.Advance(s)
	}
	if s.RecordID != "" {
		s = s.Clone()
		s.RecordID = ""
		s.AllowDuplicate = false
	}
	return s
}

func validationText(err error) string {
	if msg := apperr.UserMessage(err); msg != "" {
		return msg
	}
	return "некорректное значение"
}

// Instrument counts turns and logs their outcome.
func (m *Machine) Instrument() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
			start := time.Now()
			from := s.State
			m.metrics.IncTurn(string(from))

			r, err := next(ctx, s, ev)

			evt := zerolog.Ctx(ctx).Debug()
			if err != nil {
				evt = zerolog.Ctx(ctx).Error().Err(err)
			}
			evt.Str("event", ev.Kind.String()).
				Str("action", ev.Action()).
				Str("from", string(from)).
				Str("to", string(s.State)).
				Dur("took", time.Since(start)).
				Msg("turn")
			return r, err
		}
	}
}
