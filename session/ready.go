package session

import (
	"context"
	"sync"
)

// Ready is the result of Initialize. It resolves once: with nil after the
// engine's first readyok, or with the error that ended the handshake.
type Ready struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newReady() *Ready {
	return &Ready{done: make(chan struct{})}
}

func resolvedReady(err error) *Ready {
	r := newReady()
	r.resolve(err)
	return r
}

func (r *Ready) resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed when the handshake completes or fails.
func (r *Ready) Done() <-chan struct{} { return r.done }

// Err returns the handshake outcome, or nil while still pending.
func (r *Ready) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the handshake resolves or ctx ends. Cancelling ctx here
// does not abort the handshake; cancel the ctx given to Initialize for that.
func (r *Ready) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
