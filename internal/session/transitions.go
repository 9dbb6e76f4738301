package session

import (
	"time"

	"participants-bot/internal/models"
)

// The functions below are pure: they take a session by value and return
// the next one.

// StartRegistration begins collecting a new record. Tracked message ids
// and history survive.
func StartRegistration(s Session) Session {
	out := Reset(s)
	out.State = StateCollecting
	return out
}

// StartSearch begins the search flow.
func StartSearch(s Session) Session {
	out := Reset(s)
	out.State = StateSearching
	return out
}

// Absorb applies parsed fields to the accumulated data and moves to the
// next state.
func Absorb(s Session, fs models.FieldSet) Session {
	out := s.Clone()
	fs.ApplyTo(&out.Data)
	return Advance(out)
}

// Advance moves to FillingMissingFields while required fields are unset
// and to ConfirmingData once the record is complete.
func Advance(s Session) Session {
	out := s.Clone()
	out.Pending = nil
	if missing := out.Data.MissingFields(); len(missing) > 0 {
		out.State = StateFillingMissingFields
		out.MissingField = missing[0]
		return out
	}
	out.State = StateConfirmingData
	out.MissingField = ""
	return out
}

// BeginEdit sets the pending-edit marker for field.
func BeginEdit(s Session, field models.Field, now time.Time, timeout time.Duration, generation uint64) Session {
	out := s.Clone()
	out.State = StateConfirmingData
	out.Pending = &PendingEdit{Field: field, Deadline: now.Add(timeout), Generation: generation}
	return out
}

// ClearEdit drops the pending-edit marker.
func ClearEdit(s Session) Session {
	out := s.Clone()
	out.Pending = nil
	return out
}

// AwaitDuplicate routes to ConfirmingDuplicate for existing.
func AwaitDuplicate(s Session, existing models.Participant) Session {
	out := s.Clone()
	out.State = StateConfirmingDuplicate
	out.Duplicate = &existing
	out.Pending = nil
	return out
}

// Fail clears all partial data. With recover set the last data is kept as
// a snapshot and the session moves to Recovering.
func Fail(s Session, recover bool) Session {
	out := Reset(s)
	if recover && s.InRegistration() {
		out.State = StateRecovering
		out.Snapshot = &Snapshot{Data: s.Data, RecordID: s.RecordID, AllowDuplicate: s.AllowDuplicate}
		if s.Snapshot != nil && s.State == StateRecovering {
			out.Snapshot = s.Snapshot
		}
	}
	return out
}

// Resume restores the snapshot and continues with the next missing field,
// or the confirmation screen when the snapshot is complete.
func Resume(s Session) Session {
	out := Reset(s)
	if s.Snapshot == nil {
		return out
	}
	out.Data = s.Snapshot.Data
	out.RecordID = s.Snapshot.RecordID
	out.AllowDuplicate = s.Snapshot.AllowDuplicate
	return Advance(out)
}

// ShowResults stores search hits and moves to SelectingResult.
func ShowResults(s Session, query string, hits []Hit) Session {
	out := s.Clone()
	out.State = StateSelectingResult
	out.Query = query
	out.Results = append([]Hit(nil), hits...)
	out.Selected = ""
	return out
}

// Select picks record p for ChoosingAction.
func Select(s Session, p models.Participant) Session {
	out := s.Clone()
	out.State = StateChoosingAction
	out.Selected = p.ID
	out.Data = p
	return out
}

// BackToResults returns from ChoosingAction to the result list.
func BackToResults(s Session) Session {
	out := s.Clone()
	out.State = StateSelectingResult
	out.Selected = ""
	out.Data = models.Participant{}
	return out
}

// EditSelected opens the selected record on the confirmation screen.
func EditSelected(s Session) Session {
	out := s.Clone()
	out.RecordID = s.Data.ID
	out.AllowDuplicate = true
	out.State = StateConfirmingData
	return out
}

// ConfirmDelete moves to ExecutingAction for the selected record.
func ConfirmDelete(s Session) Session {
	out := s.Clone()
	out.State = StateExecutingAction
	return out
}

// Reset returns an idle session keeping identity, history and cleanup ids.
func Reset(s Session) Session {
	out := New(s.UserID, s.ChatID)
	out.History = append([]string(nil), s.History...)
	out.Cleanup = append([]int(nil), s.Cleanup...)
	out.UpdatedAt = s.UpdatedAt
	return out
}

// Record appends action to the rolling history.
func Record(s Session, action string) Session {
	out := s.Clone()
	out.History = append(out.History, action)
	if n := len(out.History); n > HistorySize {
		out.History = out.History[n-HistorySize:]
	}
	return out
}

// Track adds message ids to delete when the flow ends.
func Track(s Session, ids ...int) Session {
	out := s.Clone()
	out.Cleanup = append(out.Cleanup, ids...)
	return out
}

// TakeCleanup returns the tracked ids and a session without them.
func TakeCleanup(s Session) (Session, []int) {
	out := s.Clone()
	ids := out.Cleanup
	out.Cleanup = nil
	return out, ids
}
