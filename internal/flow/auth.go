package flow

// Permission is what an event requires from its sender.
type Permission int

const (
	PermNone Permission = iota
	PermRegister
	PermDelete // admin only: deletions and exports
)

// Access holds the user allowlists. Admins may do everything; an empty
// coordinator list lets every user register, search and edit.
type Access struct {
	Admins       map[int64]bool
	Coordinators map[int64]bool
}

// Allows reports whether userID holds perm.
func (a Access) Allows(userID int64, perm Permission) bool {
	switch perm {
	case PermNone:
		return true
	case PermRegister:
		return a.Admins[userID] || len(a.Coordinators) == 0 || a.Coordinators[userID]
	case PermDelete:
		return a.Admins[userID]
	}
	return false
}

// required maps an event onto the permission it needs. Input inside a flow
// needs none: entering the flow was already checked.
func required(ev Event) Permission {
	switch ev.Kind {
	case EventCommand:
		switch ev.Text {
		case "add", "search":
			return PermRegister
		case "export":
			return PermDelete
		}
	case EventCallback:
		switch ev.Text {
		case cbMenuAdd, cbMenuSearch, cbActEdit:
			return PermRegister
		case cbActDelete, cbDelYes:
			return PermDelete
		}
	}
	return PermNone
}
