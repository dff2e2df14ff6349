package core

// CommandKind describes what the connected client wants to do.
type CommandKind int

const (
	// CommandAuthenticate presents a connect credential.
	CommandAuthenticate CommandKind = iota
	// CommandClose asks for an orderly close.
	CommandClose
)

// Command represents an action requested over a session.
type Command struct {
	Kind       CommandKind
	Credential string
}
