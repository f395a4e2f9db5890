// Package transport runs a UCI engine binary as a subprocess and moves text
// lines between its stdin/stdout and a session.Receiver.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/jacokyle01/analysis-session/session"
	"github.com/jacokyle01/analysis-session/uci"
)

const (
	// DefaultGrace is how long an engine gets to honor "quit" before it is
	// killed.
	DefaultGrace = 2 * time.Second

	// DefaultMaxLineBytes bounds one line of engine output.
	DefaultMaxLineBytes = 1 << 20
)

// Options tune how the engine process is started.
type Options struct {
	Args         []string
	Dir          string
	Env          []string // nil inherits the parent environment
	Grace        time.Duration
	MaxLineBytes int
	Logger       *slog.Logger
}

// NewDialer returns a session.Dialer that starts the engine at the locator
// path with opts.
func NewDialer(opts Options) session.Dialer {
	return session.DialerFunc(func(ctx context.Context, path string, r session.Receiver) (session.Transport, error) {
		return Start(ctx, path, r, opts)
	})
}

// Process is a running engine.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	log    *slog.Logger
	grace  time.Duration
	exited chan struct{}

	mu sync.Mutex
	w  *bufio.Writer

	terminating atomic.Bool
	once        sync.Once
}

var _ session.Transport = (*Process)(nil)

// Start launches the engine and begins delivering its output to r. ctx only
// bounds the start itself; the process outlives it until Terminate.
func Start(ctx context.Context, path string, r session.Receiver, opts Options) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %s: %w", path, err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		log:    logger.With("component", "transport", "pid", cmd.Process.Pid),
		grace:  opts.Grace,
		exited: make(chan struct{}),
		w:      bufio.NewWriter(stdin),
	}
	go p.readLoop(stdout, r, opts.MaxLineBytes)
	return p, nil
}

// Send writes one line to the engine's stdin.
func (p *Process) Send(line string) bool {
	if p.terminating.Load() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.WriteString(line + "\n"); err != nil {
		p.log.Warn("engine write failed", "error", err)
		return false
	}
	if err := p.w.Flush(); err != nil {
		p.log.Warn("engine write failed", "error", err)
		return false
	}
	return true
}

// Terminate asks the engine to quit and kills it if it has not exited after
// the grace period. It returns immediately.
func (p *Process) Terminate() {
	p.once.Do(func() {
		p.terminating.Store(true)
		go p.shutdown()
	})
}

// Done is closed once the engine process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.exited }

func (p *Process) shutdown() {
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		_, _ = p.w.WriteString(uci.CmdQuit + "\n")
		_ = p.w.Flush()
		_ = p.stdin.Close()
	}()

	select {
	case <-p.exited:
	case <-time.After(p.grace):
		p.log.Warn("engine ignored quit, killing", "grace", p.grace)
		_ = p.cmd.Process.Kill()
	}
}

func (p *Process) readLoop(stdout io.Reader, r session.Receiver, maxLine int) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	corrupt := false
	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			corrupt = true
			break
		}
		r.ReceiveLine(line)
	}
	scanErr := scanner.Err()
	if corrupt || scanErr != nil {
		// Nobody drains stdout any more; the engine must not block on it.
		_ = p.cmd.Process.Kill()
	}
	waitErr := p.cmd.Wait()
	close(p.exited)

	if p.terminating.Load() {
		return
	}
	switch {
	case corrupt || errors.Is(scanErr, bufio.ErrTooLong):
		r.ReceiveCorruption()
	case scanErr != nil:
		r.ReceiveError(fmt.Errorf("read engine output: %w", scanErr))
	case waitErr != nil:
		r.ReceiveError(fmt.Errorf("engine exited: %w", waitErr))
	default:
		r.ReceiveError(errors.New("engine exited"))
	}
}
