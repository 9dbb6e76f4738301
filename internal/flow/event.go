package flow

import "strings"

// EventKind tells what kind of input a turn carries.
type EventKind int

const (
	EventText EventKind = iota
	EventCommand
	EventCallback
	EventTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventTimeout:
		return "timeout"
	}
	return "unknown"
}

// Event is one unit of input for the machine.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64

	// Text is the message body for EventText, the command name without the
	// slash for EventCommand and the button data for EventCallback.
	Text string

	// MessageID of the incoming message, tracked for cleanup.
	MessageID int

	// Generation of the edit timer for EventTimeout.
	Generation uint64
}

// Text builds a message event.
func Text(userID, chatID int64, text string, messageID int) Event {
	return Event{Kind: EventText, UserID: userID, ChatID: chatID, Text: text, MessageID: messageID}
}

// Command builds a command event. name may carry a leading slash.
func Command(userID, chatID int64, name string, messageID int) Event {
	return Event{Kind: EventCommand, UserID: userID, ChatID: chatID, Text: strings.TrimPrefix(name, "/"), MessageID: messageID}
}

// Callback builds a button event.
func Callback(userID, chatID int64, data string) Event {
	return Event{Kind: EventCallback, UserID: userID, ChatID: chatID, Text: data}
}

// namespace splits callback data "ns:rest".
func (e Event) namespace() (string, string) {
	ns, rest, _ := strings.Cut(e.Text, ":")
	return ns, rest
}

// Action names the event for history and logs.
func (e Event) Action() string {
	switch e.Kind {
	case EventCommand:
		return "/" + e.Text
	case EventCallback:
		return e.Text
	case EventTimeout:
		return "timeout"
	}
	return "text"
}

// Button is a selectable option.
type Button struct {
	Text string
	Data string
}

// Reply is what a turn emits. The transport renders it.
type Reply struct {
	Text    string
	Buttons [][]Button

	// Notice answers a button press without a message.
	Notice string

	// Track asks the transport to report the id of the sent message so it
	// is deleted when the flow ends.
	Track bool

	// Cleanup lists message ids to delete now.
	Cleanup []int
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return r.Text == "" && r.Notice == "" && len(r.Cleanup) == 0
}

func row(buttons ...Button) []Button {
	return buttons
}
