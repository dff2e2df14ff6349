package core

// EventKind is a notification the core pushes to sessions.
type EventKind int

const (
	// EventOnlineUsers carries the full set of connected user ids.
	EventOnlineUsers EventKind = iota
	// EventNewMessage delivers a message to its recipient's live session.
	EventNewMessage
	// EventError notifies a session about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOnlineUsers:
		return "onlineUsers"
	case EventNewMessage:
		return "newMessage"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is pushed to sessions to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Online  []string // EventOnlineUsers
	Message *Message // EventNewMessage
	Error   *CoreError
}
