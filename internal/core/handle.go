package core

// CloseReason says why a session ended.
type CloseReason int

const (
	CloseNormal CloseReason = iota
	// CloseSuperseded is used when a newer session for the same user registers.
	CloseSuperseded
	CloseUnauthorized
	CloseAuthTimeout
	CloseLivenessLost
	CloseTransportClosed
	CloseShutdown
)

func (r CloseReason) String() string {
	switch r {
	case CloseNormal:
		return "normal"
	case CloseSuperseded:
		return "superseded"
	case CloseUnauthorized:
		return "unauthorized"
	case CloseAuthTimeout:
		return "auth_timeout"
	case CloseLivenessLost:
		return "liveness_lost"
	case CloseTransportClosed:
		return "transport_closed"
	case CloseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Handle is the registry's view of a live connection. Implementations must be
// comparable (pointer types) and Push and Close must not block.
type Handle interface {
	UserID() string
	Push(ev *Event) error
	Close(reason CloseReason)
}
