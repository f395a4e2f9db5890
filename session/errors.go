package session

import "errors"

// Sentinel errors reported through the error listener and the init future.
var (
	// ErrDestroyed indicates the session was shut down before the operation
	// could complete.
	ErrDestroyed = errors.New("session: destroyed")

	// ErrTransport indicates the engine process could not be started, died,
	// or stopped accepting input.
	ErrTransport = errors.New("session: transport failure")

	// ErrCorruption indicates the transport received bytes it could not frame
	// into lines.
	ErrCorruption = errors.New("session: message corruption")

	// ErrAckTimeout indicates the engine did not answer uci, isready or stop
	// within Config.AckTimeout.
	ErrAckTimeout = errors.New("session: acknowledgement timeout")
)

// EngineError is an internal fault reported by the engine on an "error"
// line. It is not fatal: the session keeps running.
type EngineError struct {
	Message string
}

func (e *EngineError) Error() string {
	return "session: engine error: " + e.Message
}
