package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jacokyle01/analysis-session/uci"
)

// Initialize starts the engine and begins the handshake. It returns at once;
// the Ready resolves after the first readyok, or with the error that ended
// the attempt. Cancelling ctx before then destroys the session.
//
// Initialize is accepted from Uninitialized and Destroyed. While a handshake
// is in flight it returns that handshake's Ready; once the session is up it
// returns an already resolved Ready.
func (c *Controller) Initialize(ctx context.Context) *Ready {
	c.mu.Lock()
	switch c.state {
	case StateInitializing:
		r := c.ready
		c.mu.Unlock()
		return r
	case StateUninitialized, StateDestroyed:
	default:
		c.mu.Unlock()
		return resolvedReady(nil)
	}
	c.gen++
	gen := c.gen
	r := newReady()
	c.ready = r
	c.handshook = false
	c.identity = Identity{}
	c.setStateLocked(StateInitializing)
	c.mu.Unlock()

	c.log.Info("starting engine", "path", c.cfg.EnginePath)
	t, err := c.dialer.Dial(ctx, c.cfg.EnginePath, &link{c: c, gen: gen})

	var out outbox
	c.mu.Lock()
	switch {
	case gen != c.gen || c.state != StateInitializing:
		// Shut down, or failed, while dialing.
		c.mu.Unlock()
		if t != nil {
			t.Terminate()
		}
		r.resolve(ErrDestroyed)
		return r
	case err != nil:
		c.failLocked(&out, fmt.Errorf("%w: start %s: %w", ErrTransport, c.cfg.EnginePath, err))
	default:
		c.transport = t
		c.sendLocked(&out, uci.CmdHandshake)
	}
	c.mu.Unlock()
	for _, call := range out {
		call()
	}

	if ctx.Done() != nil {
		go c.watchInit(ctx, gen, r)
	}
	return r
}

// watchInit fails the handshake if ctx ends before it resolves.
func (c *Controller) watchInit(ctx context.Context, gen uint64, r *Ready) {
	select {
	case <-r.Done():
	case <-ctx.Done():
		c.run(func(out *outbox) {
			if gen != c.gen || c.state != StateInitializing {
				return
			}
			c.failLocked(out, fmt.Errorf("session: initialize: %w", ctx.Err()))
		})
	}
}

// Shutdown releases the engine and drops all queued work. Safe to call any
// number of times from any state; the transport is terminated once.
func (c *Controller) Shutdown() {
	c.run(func(out *outbox) {
		if c.state == StateDestroyed {
			return
		}
		c.log.Info("shutting down engine session", "state", c.state)
		c.releaseLocked()
	})
}

// failLocked ends the session on a fatal error and reports it.
func (c *Controller) failLocked(out *outbox, err error) {
	if c.state == StateDestroyed {
		return
	}
	c.log.Error("engine session failed", "state", c.state, "error", err)
	if c.ready != nil {
		c.ready.resolve(err)
	}
	c.releaseLocked()
	c.emitErrorLocked(out, err)
}

func (c *Controller) releaseLocked() {
	t := c.transport
	c.transport = nil
	c.gen++
	c.active, c.pendingSearch, c.pendingOption, c.resume = nil, nil, nil, nil
	c.handshook = false
	c.setStateLocked(StateDestroyed)
	if c.ready != nil {
		c.ready.resolve(ErrDestroyed)
	}
	if t != nil {
		t.Terminate()
	}
}

// transportFailed handles a crash or corruption report.
func (c *Controller) transportFailed(gen uint64, err error) {
	c.run(func(out *outbox) {
		if gen != c.gen || !c.state.live() {
			return
		}
		c.failLocked(out, err)
	})
}

func (c *Controller) armAckLocked() {
	c.disarmAckLocked()
	if c.cfg.AckTimeout <= 0 {
		return
	}
	gen, seq := c.gen, c.ackSeq
	c.ackTimer = time.AfterFunc(c.cfg.AckTimeout, func() { c.ackExpired(gen, seq) })
}

func (c *Controller) disarmAckLocked() {
	if c.ackTimer != nil {
		c.ackTimer.Stop()
		c.ackTimer = nil
	}
	c.ackSeq++
}

func (c *Controller) ackExpired(gen, seq uint64) {
	c.run(func(out *outbox) {
		if gen != c.gen || seq != c.ackSeq || !c.state.waiting() {
			return
		}
		c.failLocked(out, fmt.Errorf("%w: still %s after %s", ErrAckTimeout, c.state, c.cfg.AckTimeout))
	})
}

func transportError(what string) error {
	return fmt.Errorf("%w: %s", ErrTransport, what)
}

// link binds a transport to the generation it was dialed for, so callbacks
// from a released transport are dropped.
type link struct {
	c   *Controller
	gen uint64
}

func (l *link) ReceiveLine(line string) { l.c.receiveLine(l.gen, line) }

func (l *link) ReceiveError(err error) {
	if !errors.Is(err, ErrTransport) {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
	}
	l.c.transportFailed(l.gen, err)
}

func (l *link) ReceiveCorruption() { l.c.transportFailed(l.gen, ErrCorruption) }
