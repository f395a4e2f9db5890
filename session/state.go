package session

// State is the protocol state of a Controller. Exactly one holds at a time.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateIdle
	StateAwaitingSync
	StateSearching
	StateAwaitingStop
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateIdle:
		return "idle"
	case StateAwaitingSync:
		return "awaiting-sync"
	case StateSearching:
		return "searching"
	case StateAwaitingStop:
		return "awaiting-stop"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// waiting reports whether the engine owes the controller an acknowledgement.
func (s State) waiting() bool {
	return s == StateInitializing || s == StateAwaitingSync || s == StateAwaitingStop
}

// live reports whether the controller accepts caller intents.
func (s State) live() bool {
	return s != StateUninitialized && s != StateDestroyed
}
