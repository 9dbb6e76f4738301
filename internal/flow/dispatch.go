package flow

import (
	"context"

	"participants-bot/internal/session"
)

// Callback data. Parameterized buttons use the namespace prefixes.
const (
	cbMenuAdd    = "menu:add"
	cbMenuSearch = "menu:search"
	cbMenuCancel = "menu:cancel"

	cbConfirmSave   = "confirm:save"
	cbConfirmCancel = "confirm:cancel"

	cbDupNew     = "dup:new"
	cbDupReplace = "dup:replace"
	cbDupCancel  = "dup:cancel"

	cbRecResume = "rec:resume"
	cbRecReset  = "rec:reset"

	cbActEdit   = "act:edit"
	cbActDelete = "act:delete"
	cbActBack   = "act:back"

	cbDelYes = "del:yes"
	cbDelNo  = "del:no"

	nsField  = "field"
	nsSet    = "set"
	nsSelect = "sel"
)

func (m *Machine) dispatch(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
	switch ev.Kind {
	case EventCommand:
		return m.command(ctx, s, ev)
	case EventCallback:
		return m.callback(ctx, s, ev)
	case EventTimeout:
		return m.timeout(s, ev), nil
	}
	return m.text(ctx, s, ev.Text)
}

func (m *Machine) command(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
	switch ev.Text {
	case "start":
		m.cancel(s)
		return Reply{Text: msgWelcome, Buttons: menuButtons()}, nil
	case "add":
		return m.startRegistration(s), nil
	case "search":
		return m.startSearch(s), nil
	case "cancel":
		return m.cancelReply(s), nil
	case "help":
		return Reply{Text: msgHelp}, nil
	case "export":
		if m.exportURL == "" {
			return Reply{Text: msgExportDisabled}, nil
		}
		return Reply{Text: msgExport + m.exportURL}, nil
	}
	return Reply{Text: msgUnknownCommand}, nil
}

func (m *Machine) callback(ctx context.Context, s *session.Session, ev Event) (Reply, error) {
	switch ev.Text {
	case cbMenuAdd:
		return m.startRegistration(s), nil
	case cbMenuSearch:
		return m.startSearch(s), nil
	case cbMenuCancel:
		return m.cancelReply(s), nil
	}

	stale := Reply{Notice: msgStale}
	ns, rest := ev.namespace()

	switch s.State {
	case session.StateFillingMissingFields:
		if ns == nsSet {
			return m.setFromButton(ctx, s, rest)
		}

	case session.StateConfirmingData:
		switch {
		case ev.Text == cbConfirmSave:
			return m.save(ctx, s)
		case ev.Text == cbConfirmCancel:
			return m.cancelReply(s), nil
		case ns == nsField:
			return m.beginEdit(s, rest)
		case ns == nsSet && s.Pending != nil:
			return m.setFromButton(ctx, s, rest)
		}

	case session.StateConfirmingDuplicate:
		switch ev.Text {
		case cbDupNew:
			return m.addAsNew(s), nil
		case cbDupReplace:
			return m.replaceExisting(s), nil
		case cbDupCancel:
			return m.cancelReply(s), nil
		}

	case session.StateRecovering:
		switch ev.Text {
		case cbRecResume:
			*s = session.Resume(*s)
			return m.prompt(*s), nil
		case cbRecReset:
			return m.startRegistration(s), nil
		}

	case session.StateSelectingResult:
		if ns == nsSelect {
			return m.selectResult(ctx, s, rest)
		}

	case session.StateChoosingAction:
		switch ev.Text {
		case cbActEdit:
			*s = session.EditSelected(*s)
			return m.prompt(*s), nil
		case cbActDelete:
			*s = session.ConfirmDelete(*s)
			return m.prompt(*s), nil
		case cbActBack:
			*s = session.BackToResults(*s)
			return m.prompt(*s), nil
		}

	case session.StateExecutingAction:
		switch ev.Text {
		case cbDelYes:
			return m.deleteSelected(ctx, s)
		case cbDelNo:
			s.State = session.StateChoosingAction
			return m.prompt(*s), nil
		}
	}
	return stale, nil
}

func (m *Machine) text(ctx context.Context, s *session.Session, text string) (Reply, error) {
	switch s.State {
	case session.StateCollecting:
		return m.collect(ctx, s, text)
	case session.StateFillingMissingFields:
		return m.fillMissing(ctx, s, text)
	case session.StateConfirmingData:
		return m.correct(ctx, s, text)
	case session.StateSearching, session.StateSelectingResult:
		return m.search(ctx, s, text)
	case session.StateIdle, "":
		return Reply{Text: msgIdle, Buttons: menuButtons()}, nil
	}
	// states driven by buttons only
	return m.prompt(*s), nil
}

func (m *Machine) startRegistration(s *session.Session) Reply {
	m.timers.Cancel(s.UserID)
	*s = session.StartRegistration(*s)
	return m.prompt(*s)
}

func (m *Machine) startSearch(s *session.Session) Reply {
	m.timers.Cancel(s.UserID)
	*s = session.StartSearch(*s)
	return m.prompt(*s)
}

// cancel drops the current flow.
func (m *Machine) cancel(s *session.Session) {
	m.timers.Cancel(s.UserID)
	*s = session.Reset(*s)
}

func (m *Machine) cancelReply(s *session.Session) Reply {
	active := s.Active()
	m.cancel(s)
	if !active {
		return Reply{Text: msgNothingToCancel, Buttons: menuButtons()}
	}
	return Reply{Text: msgCancelled, Buttons: menuButtons()}
}
