package session

import "context"

// Transport carries raw lines to a running engine.
//
// Send and Terminate are called with the controller's lock held, so neither
// may block for long nor call back into the Receiver synchronously.
type Transport interface {
	// Send writes one line. It reports false when the line could not be
	// delivered.
	Send(line string) bool

	// Terminate releases the engine. Called at most once per transport.
	Terminate()
}

// Receiver gets everything a Transport reads from the engine. Calls must
// arrive one at a time, in the order the engine produced them.
type Receiver interface {
	ReceiveLine(line string)
	ReceiveError(err error)
	ReceiveCorruption()
}

// Dialer starts an engine and connects it to r.
type Dialer interface {
	Dial(ctx context.Context, locator string, r Receiver) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, locator string, r Receiver) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, locator string, r Receiver) (Transport, error) {
	return f(ctx, locator, r)
}
