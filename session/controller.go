// Package session drives one long-lived UCI engine on behalf of a caller
// whose requests overlap and change faster than the engine can follow.
//
// A Controller serializes caller intents against the engine's protocol
// state: it only sends position, go and setoption while the engine is known
// to be idle, collapses superseded requests so the newest wins, and folds
// MultiPV progress into Snapshots that are published once a search is deep
// enough and every ranked line agrees on depth.
//
// All entry points, caller calls and transport callbacks alike, run one at a
// time under a single lock. Listeners are invoked after the lock is released
// and may call back into the Controller.
package session

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jacokyle01/analysis-session/uci"
)

// search is an analyze intent: a position and the depth to search it to.
type search struct {
	positionID string
	depth      int
}

type option struct {
	name  string
	value string
}

// Controller owns the conversation with one engine process.
type Controller struct {
	cfg    Config
	dialer Dialer
	log    *slog.Logger

	mu        sync.Mutex
	state     State
	gen       uint64 // bumped whenever a transport is released
	transport Transport
	ready     *Ready
	handshook bool
	identity  Identity

	epoch   uint64
	multiPV int
	agg     *aggregator

	active        *search // running, or being stopped
	pendingSearch *search
	pendingOption *option
	resume        *search

	ackTimer *time.Timer
	ackSeq   uint64

	onSnapshot func(Snapshot)
	onError    func(error)
	onComplete func(Completion)
}

// New returns an uninitialized Controller. Nothing is started until
// Initialize.
func New(cfg Config, dialer Dialer) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:     cfg,
		dialer:  dialer,
		log:     cfg.Logger.With("component", "session"),
		multiPV: cfg.MultiPV,
		agg:     newAggregator(cfg.MultiPV, cfg.StableDepth),
	}
}

// OnSnapshot replaces the snapshot listener. nil removes it.
func (c *Controller) OnSnapshot(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSnapshot = fn
}

// OnError replaces the error listener. nil removes it.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// OnComplete replaces the completion listener. nil removes it.
func (c *Controller) OnComplete(fn func(Completion)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// State returns the current protocol state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Epoch returns the id of the most recently started search.
func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// MultiPV returns the current rank target.
func (c *Controller) MultiPV() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multiPV
}

// Identity returns the engine's id lines from the last handshake.
func (c *Controller) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// RequestAnalysis asks for positionID to be searched to depthLimit, clamped
// to [1,100]. While the engine is busy the request waits in a single slot;
// a later request replaces it.
func (c *Controller) RequestAnalysis(positionID string, depthLimit int) {
	s := search{positionID: positionID, depth: uci.ClampDepth(depthLimit)}
	c.run(func(out *outbox) {
		switch c.state {
		case StateInitializing, StateAwaitingSync, StateAwaitingStop:
			c.pendingSearch = &s
		case StateIdle:
			c.pendingSearch = &s
			if c.sendLocked(out, uci.CmdSync) {
				c.setStateLocked(StateAwaitingSync)
			}
		case StateSearching:
			c.pendingSearch = &s
			if c.sendLocked(out, uci.CmdStop) {
				c.setStateLocked(StateAwaitingStop)
			}
		}
	})
}

// RequestOptionChange sets an engine option. Interrupting a running search
// for it remembers that search and restarts it once the option is applied,
// unless a newer RequestAnalysis supersedes it.
func (c *Controller) RequestOptionChange(name, value string) {
	o := option{name: name, value: value}
	c.run(func(out *outbox) {
		if !c.state.live() {
			return
		}
		c.trackOptionLocked(o)

		switch c.state {
		case StateInitializing, StateAwaitingSync:
			c.pendingOption = &o
		case StateAwaitingStop:
			if c.pendingSearch == nil && c.resume == nil && c.active != nil {
				r := *c.active
				c.resume = &r
			}
			c.pendingOption = &o
		case StateIdle:
			if c.sendLocked(out, uci.SetOption(o.name, o.value), uci.CmdSync) {
				c.setStateLocked(StateAwaitingSync)
			}
		case StateSearching:
			if c.pendingSearch == nil && c.active != nil {
				r := *c.active
				c.resume = &r
			}
			c.pendingOption = &o
			if c.sendLocked(out, uci.CmdStop) {
				c.setStateLocked(StateAwaitingStop)
			}
		}
	})
}

// RequestStop drops every queued intent and stops the running search. The
// bestmove the engine answers with is absorbed without publishing.
func (c *Controller) RequestStop() {
	c.run(func(out *outbox) {
		c.pendingSearch, c.pendingOption, c.resume = nil, nil, nil
		switch c.state {
		case StateSearching:
			c.active = nil
			if c.sendLocked(out, uci.CmdStop) {
				c.setStateLocked(StateAwaitingStop)
			}
		case StateAwaitingStop:
			c.active = nil
		}
	})
}

// trackOptionLocked mirrors a MultiPV change into the rank target before
// the engine acknowledges it. Values that are not an integer in
// [1, uci.MaxMultiPV] are still forwarded to the engine but leave the target
// alone.
func (c *Controller) trackOptionLocked(o option) {
	if !uci.IsMultiPV(o.name) {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(o.value))
	if err != nil || n < 1 || n > uci.MaxMultiPV {
		c.log.Debug("ignoring MultiPV value for rank tracking", "value", o.value)
		return
	}
	c.multiPV = n
	c.agg.resize(n)
}

// receiveLine handles one line from the transport of generation gen.
func (c *Controller) receiveLine(gen uint64, line string) {
	c.run(func(out *outbox) {
		if gen != c.gen || !c.state.live() {
			return
		}
		c.log.Debug("uci recv", "line", line)
		c.handleLocked(out, uci.Parse(line))
	})
}

func (c *Controller) handleLocked(out *outbox, ev uci.Event) {
	switch ev := ev.(type) {
	case uci.HandshakeAck:
		if c.state != StateInitializing || c.handshook {
			return
		}
		c.handshook = true
		lines := []string{uci.SetOption(uci.MultiPVOption, strconv.Itoa(c.multiPV))}
		for _, o := range c.cfg.Options {
			lines = append(lines, uci.SetOption(o.Name, o.Value))
		}
		lines = append(lines, uci.CmdSync)
		if c.sendLocked(out, lines...) {
			c.armAckLocked()
		}

	case uci.SyncAck:
		switch c.state {
		case StateInitializing:
			if !c.handshook {
				return
			}
			c.ready.resolve(nil)
			c.log.Info("engine ready", "engine", c.identity.Name, "multipv", c.multiPV)
			c.drainLocked(out)
		case StateAwaitingSync:
			c.drainLocked(out)
		}

	case uci.Progress:
		// Progress outside Searching belongs to a search being abandoned.
		if c.state != StateSearching || c.agg.epoch != c.epoch {
			return
		}
		if snap, ok := c.agg.observe(ev); ok {
			c.emitSnapshotLocked(out, snap)
		}

	case uci.BestMove:
		switch c.state {
		case StateSearching:
			done := Completion{Epoch: c.epoch, BestMove: ev.Move, Ponder: ev.Ponder}
			if c.active != nil {
				done.PositionID = c.active.positionID
			}
			if snap, ok := c.agg.finish(ev.Move); ok {
				c.emitSnapshotLocked(out, snap)
			}
			c.active = nil
			c.setStateLocked(StateIdle)
			c.emitCompleteLocked(out, done)
			c.resumeLocked(out)
		case StateAwaitingStop:
			c.active = nil
			c.setStateLocked(StateIdle)
			c.resumeLocked(out)
		}

	case uci.EngineError:
		c.log.Warn("engine reported error", "message", ev.Message)
		c.emitErrorLocked(out, &EngineError{Message: ev.Message})

	case uci.ID:
		switch ev.Field {
		case "name":
			c.identity.Name = ev.Value
		case "author":
			c.identity.Author = ev.Value
		}
	}
}

// resumeLocked runs after a search ends: it asks the engine to synchronize
// when anything is queued, so queued intents drain on the next readyok.
func (c *Controller) resumeLocked(out *outbox) {
	if c.pendingOption == nil && c.pendingSearch == nil && c.resume == nil {
		return
	}
	if c.sendLocked(out, uci.CmdSync) {
		c.setStateLocked(StateAwaitingSync)
	}
}

// drainLocked runs when the engine has just acknowledged isready. Options
// go first and force another round trip; then the newest analyze intent, or
// failing that the interrupted search, starts.
func (c *Controller) drainLocked(out *outbox) {
	if o := c.pendingOption; o != nil {
		c.pendingOption = nil
		if c.sendLocked(out, uci.SetOption(o.name, o.value), uci.CmdSync) {
			c.setStateLocked(StateAwaitingSync)
		}
		return
	}

	next := c.pendingSearch
	if next == nil {
		next = c.resume
	}
	c.pendingSearch, c.resume = nil, nil
	if next == nil {
		c.setStateLocked(StateIdle)
		return
	}
	c.startSearchLocked(out, *next)
}

func (c *Controller) startSearchLocked(out *outbox, s search) {
	c.epoch++
	c.agg.begin(c.epoch, s.positionID)
	c.active = &s
	if c.sendLocked(out, uci.Position(s.positionID), uci.Go(s.depth)) {
		c.log.Debug("search started", "epoch", c.epoch, "position", s.positionID, "depth", s.depth)
		c.setStateLocked(StateSearching)
	}
}

func (c *Controller) setStateLocked(s State) {
	if c.state != s {
		c.log.Debug("session state", "from", c.state, "to", s, "epoch", c.epoch)
	}
	c.state = s
	if s.waiting() {
		c.armAckLocked()
	} else {
		c.disarmAckLocked()
	}
}

// sendLocked writes lines in order. A failed write is fatal and ends the
// session; the caller must not transition further when it returns false.
func (c *Controller) sendLocked(out *outbox, lines ...string) bool {
	for _, line := range lines {
		if c.transport == nil {
			return false
		}
		c.log.Debug("uci send", "line", line)
		if !c.transport.Send(line) {
			c.failLocked(out, transportError("write "+strconv.Quote(line)))
			return false
		}
	}
	return true
}

func (c *Controller) emitSnapshotLocked(out *outbox, snap Snapshot) {
	if fn := c.onSnapshot; fn != nil {
		out.add(func() { fn(snap) })
	}
}

func (c *Controller) emitErrorLocked(out *outbox, err error) {
	if fn := c.onError; fn != nil {
		out.add(func() { fn(err) })
	}
}

func (c *Controller) emitCompleteLocked(out *outbox, done Completion) {
	if fn := c.onComplete; fn != nil {
		out.add(func() { fn(done) })
	}
}

// outbox collects listener calls made while the lock is held.
type outbox []func()

func (o *outbox) add(fn func()) { *o = append(*o, fn) }

// run executes fn under the lock, then delivers whatever it queued.
func (c *Controller) run(fn func(out *outbox)) {
	var out outbox
	c.mu.Lock()
	fn(&out)
	c.mu.Unlock()
	for _, call := range out {
		call()
	}
}
