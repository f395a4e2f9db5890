// Package enginetest provides an in-process UCI engine for tests. It speaks
// enough of the protocol to drive a session.Controller end to end without a
// real engine binary.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jacokyle01/analysis-session/session"
	"github.com/jacokyle01/analysis-session/uci"
)

// Config scripts how the simulated engine searches.
type Config struct {
	Name   string
	Moves  []string // ranked root moves; Moves[0] is played. Empty means no legal move.
	Ponder string
	Score  int // rank-1 centipawns; each lower rank is 10cp worse
	Mate   int // when non-zero rank 1 reports mate instead of Score

	// Stall keeps the search running after its last depth until stop.
	Stall bool

	// Crash makes the engine die as soon as it is told to go.
	Crash bool
}

// Dialer starts a fresh simulated engine for every Dial.
type Dialer struct {
	cfg Config

	mu      sync.Mutex
	engines []*Engine
	fail    error
}

var _ session.Dialer = (*Dialer)(nil)

// NewDialer returns a Dialer whose engines follow cfg.
func NewDialer(cfg Config) *Dialer {
	if cfg.Name == "" {
		cfg.Name = "Simulator"
	}
	return &Dialer{cfg: cfg}
}

// FailWith makes subsequent dials return err. nil restores them.
func (d *Dialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Dial implements session.Dialer.
func (d *Dialer) Dial(ctx context.Context, _ string, r session.Receiver) (session.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	e := &Engine{
		cfg:  d.cfg,
		r:    r,
		in:   make(chan string, 256),
		done: make(chan struct{}),
	}
	d.engines = append(d.engines, e)
	go e.run()
	return e, nil
}

// Dials returns how many engines have been started.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.engines)
}

// Last returns the most recently started engine, or nil.
func (d *Dialer) Last() *Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.engines) == 0 {
		return nil
	}
	return d.engines[len(d.engines)-1]
}

// Engine is one simulated engine process.
type Engine struct {
	cfg  Config
	r    session.Receiver
	in   chan string
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	closed   bool
	received []string
}

var _ session.Transport = (*Engine)(nil)

// Send queues line for the engine. It never blocks.
func (e *Engine) Send(line string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	select {
	case e.in <- line:
		e.received = append(e.received, line)
		return true
	default:
		return false
	}
}

// Terminate stops the engine without reporting anything.
func (e *Engine) Terminate() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.done)
	})
}

// Terminated reports whether Terminate was called.
func (e *Engine) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Received returns every line sent to the engine so far.
func (e *Engine) Received() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.received...)
}

// Commands returns the received lines that start with prefix.
func (e *Engine) Commands(prefix string) []string {
	var out []string
	for _, line := range e.Received() {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}

func (e *Engine) emit(format string, args ...any) {
	e.r.ReceiveLine(fmt.Sprintf(format, args...))
}

func (e *Engine) run() {
	multiPV := 1
	for {
		var line string
		select {
		case <-e.done:
			return
		case line = <-e.in:
		}

		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "uci":
			e.emit("id name %s", e.cfg.Name)
			e.emit("id author enginetest")
			e.emit("uciok")
		case "isready":
			e.emit("readyok")
		case "setoption":
			// setoption name MultiPV value N
			if len(f) == 5 && uci.IsMultiPV(f[2]) {
				if n, err := strconv.Atoi(f[4]); err == nil && n > 0 {
					multiPV = n
				}
			}
		case "go":
			depth := uci.MaxDepth
			if len(f) >= 3 && f[1] == "depth" {
				depth, _ = strconv.Atoi(f[2])
			}
			if e.cfg.Crash {
				e.Terminate()
				e.r.ReceiveError(errors.New("engine exited: signal: killed"))
				return
			}
			if !e.search(depth, multiPV) {
				return
			}
		case "quit":
			return
		}
	}
}

// search reports progress for every depth and rank, then the best move. It
// returns false when the engine was terminated meanwhile.
func (e *Engine) search(depth, multiPV int) bool {
	if len(e.cfg.Moves) == 0 {
		e.emit("info depth 0 score mate 0")
		e.emit("bestmove (none)")
		return true
	}

	ranks := min(multiPV, len(e.cfg.Moves))
	for d := 1; d <= depth; d++ {
		for k := 1; k <= ranks; k++ {
			e.emit("info depth %d seldepth %d multipv %d score %s nodes %d nps 1000000 time %d pv %s",
				d, d+2, k, e.score(k), d*1000*k, d, e.pv(k))
		}
		stopped, alive := e.poll()
		if !alive {
			return false
		}
		if stopped {
			return e.bestMove()
		}
	}
	if e.cfg.Stall {
		for {
			select {
			case <-e.done:
				return false
			case line := <-e.in:
				if line == uci.CmdStop {
					return e.bestMove()
				}
			}
		}
	}
	return e.bestMove()
}

// poll checks for a stop without blocking.
func (e *Engine) poll() (stopped, alive bool) {
	select {
	case <-e.done:
		return false, false
	case line := <-e.in:
		return line == uci.CmdStop, true
	default:
		return false, true
	}
}

func (e *Engine) bestMove() bool {
	if e.cfg.Ponder != "" {
		e.emit("bestmove %s ponder %s", e.cfg.Moves[0], e.cfg.Ponder)
	} else {
		e.emit("bestmove %s", e.cfg.Moves[0])
	}
	return true
}

func (e *Engine) score(rank int) string {
	if rank == 1 && e.cfg.Mate != 0 {
		return "mate " + strconv.Itoa(e.cfg.Mate)
	}
	return "cp " + strconv.Itoa(e.cfg.Score-10*(rank-1))
}

func (e *Engine) pv(rank int) string {
	pv := e.cfg.Moves[rank-1]
	if rank == 1 && e.cfg.Ponder != "" {
		pv += " " + e.cfg.Ponder
	}
	return pv
}
