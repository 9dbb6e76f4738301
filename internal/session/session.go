// Package session holds the per-user conversation state, its pure
// transitions and the stores that keep it between turns.
package session

import (
	"time"

	"participants-bot/internal/models"
)

// State is the conversation state of one user.
type State string

const (
	StateIdle                 State = "idle"
	StateCollecting           State = "collecting"
	StateFillingMissingFields State = "filling_missing_fields"
	StateConfirmingData       State = "confirming_data"
	StateConfirmingDuplicate  State = "confirming_duplicate"
	StateRecovering           State = "recovering"
	StateSearching            State = "searching"
	StateSelectingResult      State = "selecting_result"
	StateChoosingAction       State = "choosing_action"
	StateExecutingAction      State = "executing_action"
)

// HistorySize is the number of recent actions kept per session.
const HistorySize = 5

// PendingEdit marks a field being edited from the confirmation screen.
// Input after Deadline is rejected.
type PendingEdit struct {
	Field      models.Field `json:"field"`
	Deadline   time.Time    `json:"deadline"`
	Generation uint64       `json:"generation"`
}

// Expired reports whether the edit is past its deadline at now.
func (p *PendingEdit) Expired(now time.Time) bool {
	return p != nil && !now.Before(p.Deadline)
}

// Snapshot is the data kept for the recovery offer after a technical
// failure.
type Snapshot struct {
	Data           models.Participant `json:"data"`
	RecordID       string             `json:"record_id,omitempty"`
	AllowDuplicate bool               `json:"allow_duplicate,omitempty"`
}

// Hit is a search result remembered for selection.
type Hit struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Session is the serializable conversation state of one user.
type Session struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
	State  State `json:"state"`

	// registration
	Data           models.Participant  `json:"data"`
	RecordID       string              `json:"record_id,omitempty"`
	AllowDuplicate bool                `json:"allow_duplicate,omitempty"`
	Duplicate      *models.Participant `json:"duplicate,omitempty"`
	MissingField   models.Field        `json:"missing_field,omitempty"`
	Pending        *PendingEdit        `json:"pending,omitempty"`
	Snapshot       *Snapshot           `json:"snapshot,omitempty"`

	// search
	Query    string `json:"query,omitempty"`
	Results  []Hit  `json:"results,omitempty"`
	Selected string `json:"selected,omitempty"`

	History   []string  `json:"history,omitempty"`
	Cleanup   []int     `json:"cleanup,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session for user.
func New(userID, chatID int64) Session {
	return Session{UserID: userID, ChatID: chatID, State: StateIdle}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	if s.Duplicate != nil {
		d := *s.Duplicate
		out.Duplicate = &d
	}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	if s.Snapshot != nil {
		sn := *s.Snapshot
		out.Snapshot = &sn
	}
	out.Results = append([]Hit(nil), s.Results...)
	out.History = append([]string(nil), s.History...)
	out.Cleanup = append([]int(nil), s.Cleanup...)
	return out
}

// Active reports whether a flow is in progress.
func (s Session) Active() bool {
	return s.State != StateIdle && s.State != ""
}

// InRegistration reports whether s belongs to the registration flow.
func (s Session) InRegistration() bool {
	switch s.State {
	case StateCollecting, StateFillingMissingFields, StateConfirmingData,
		StateConfirmingDuplicate, StateRecovering:
		return true
	}
	return false
}
