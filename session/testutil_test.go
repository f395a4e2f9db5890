package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTransport records what the controller sends.
type fakeTransport struct {
	mu         sync.Mutex
	sent       []string
	terminated int
	failSends  bool
}

func (f *fakeTransport) Send(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return false
	}
	f.sent = append(f.sent, line)
	return true
}

func (f *fakeTransport) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
}

// take returns and clears the lines sent so far.
func (f *fakeTransport) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

func (f *fakeTransport) terminations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// harness wires a Controller to fake transports and records listener calls.
type harness struct {
	t    *testing.T
	ctrl *Controller

	mu     sync.Mutex
	dials  int
	tr     *fakeTransport
	rx     Receiver
	snaps  []Snapshot
	errs   []error
	dones  []Completion
	dialFn func() error
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{t: t}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	dialer := DialerFunc(func(ctx context.Context, locator string, r Receiver) (Transport, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.dials++
		if h.dialFn != nil {
			if err := h.dialFn(); err != nil {
				return nil, err
			}
		}
		h.tr = &fakeTransport{}
		h.rx = r
		return h.tr, nil
	})
	h.ctrl = New(cfg, dialer)
	h.ctrl.OnSnapshot(func(s Snapshot) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.snaps = append(h.snaps, s)
	})
	h.ctrl.OnError(func(err error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.errs = append(h.errs, err)
	})
	h.ctrl.OnComplete(func(c Completion) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.dones = append(h.dones, c)
	})
	return h
}

func (h *harness) transport() *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tr
}

func (h *harness) receiver() Receiver {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rx
}

// start runs a full handshake and clears the handshake lines.
func (h *harness) start() {
	h.t.Helper()
	ready := h.ctrl.Initialize(context.Background())
	require.Equal(h.t, []string{"uci"}, h.transport().take())
	h.recv("id name Fakefish 1.0", "id author Test", "uciok")
	h.transport().take()
	h.recv("readyok")
	require.NoError(h.t, ready.Err())
	require.Equal(h.t, StateIdle, h.ctrl.State())
}

// recv feeds engine lines to the controller.
func (h *harness) recv(lines ...string) {
	rx := h.receiver()
	for _, l := range lines {
		rx.ReceiveLine(l)
	}
}

// searching starts a search on positionID and clears the sent lines.
func (h *harness) searching(positionID string, depth int) {
	h.t.Helper()
	h.ctrl.RequestAnalysis(positionID, depth)
	h.recv("readyok")
	require.Equal(h.t, StateSearching, h.ctrl.State())
	h.transport().take()
}

func (h *harness) snapshots() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Snapshot(nil), h.snaps...)
}

func (h *harness) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func (h *harness) completions() []Completion {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Completion(nil), h.dones...)
}
