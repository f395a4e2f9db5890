package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/analysis-session/session"
)

// TestHelperProcess is not a real test. It is re-executed as a tiny UCI
// engine by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		f := strings.Fields(scanner.Text())
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "uci":
			fmt.Println("id name Helper")
			fmt.Println("uciok")
		case "isready":
			fmt.Println("readyok")
		case "go":
			depth := 1
			if len(f) >= 3 {
				depth, _ = strconv.Atoi(f[2])
			}
			for d := 1; d <= depth; d++ {
				fmt.Printf("info depth %d score cp %d nodes %d pv e2e4 e7e5\n", d, 10+d, d*1000)
			}
			fmt.Println("bestmove e2e4 ponder e7e5")
		case "crash":
			os.Exit(3)
		case "flood":
			fmt.Println(strings.Repeat("x", 8192))
		case "garble":
			os.Stdout.Write([]byte{0xff, 0xfe, '\n'})
		case "quit":
			os.Exit(0)
		}
	}
}

func helperOptions() Options {
	return Options{
		Args:         []string{"-test.run=^TestHelperProcess$"},
		Env:          append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"),
		Grace:        time.Second,
		MaxLineBytes: 4096,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// recorder is a session.Receiver that forwards into channels.
type recorder struct {
	lines   chan string
	errs    chan error
	corrupt chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		lines:   make(chan string, 256),
		errs:    make(chan error, 4),
		corrupt: make(chan struct{}, 4),
	}
}

func (r *recorder) ReceiveLine(line string) { r.lines <- line }
func (r *recorder) ReceiveError(err error)  { r.errs <- err }
func (r *recorder) ReceiveCorruption()      { r.corrupt <- struct{}{} }

func (r *recorder) expectLine(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.lines:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func startHelper(t *testing.T, rec *recorder) *Process {
	t.Helper()
	p, err := Start(context.Background(), os.Args[0], rec, helperOptions())
	require.NoError(t, err)
	t.Cleanup(p.Terminate)
	return p
}

func TestProcess_SendAndReceive(t *testing.T) {
	rec := newRecorder()
	p := startHelper(t, rec)

	require.True(t, p.Send("uci"))
	rec.expectLine(t, "id name Helper")
	rec.expectLine(t, "uciok")

	require.True(t, p.Send("go depth 2"))
	rec.expectLine(t, "info depth 1 score cp 11 nodes 1000 pv e2e4 e7e5")
	rec.expectLine(t, "info depth 2 score cp 12 nodes 2000 pv e2e4 e7e5")
	rec.expectLine(t, "bestmove e2e4 ponder e7e5")
}

func TestProcess_TerminateIsQuiet(t *testing.T) {
	rec := newRecorder()
	p := startHelper(t, rec)

	p.Terminate()
	p.Terminate()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not exit")
	}
	assert.False(t, p.Send("isready"))
	assert.Empty(t, rec.errs)
	assert.Empty(t, rec.corrupt)
}

func TestProcess_CrashReported(t *testing.T) {
	rec := newRecorder()
	p := startHelper(t, rec)

	require.True(t, p.Send("crash"))
	select {
	case err := <-rec.errs:
		assert.Contains(t, err.Error(), "exit status 3")
	case <-time.After(5 * time.Second):
		t.Fatal("crash not reported")
	}
}

func TestProcess_OversizedLineIsCorruption(t *testing.T) {
	rec := newRecorder()
	p := startHelper(t, rec)

	require.True(t, p.Send("flood"))
	select {
	case <-rec.corrupt:
	case <-time.After(5 * time.Second):
		t.Fatal("corruption not reported")
	}
}

func TestProcess_InvalidUTF8IsCorruption(t *testing.T) {
	rec := newRecorder()
	p := startHelper(t, rec)

	require.True(t, p.Send("garble"))
	select {
	case <-rec.corrupt:
	case <-time.After(5 * time.Second):
		t.Fatal("corruption not reported")
	}
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(context.Background(), "/definitely/not/an/engine", newRecorder(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start engine")
}

func TestStart_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Start(ctx, os.Args[0], newRecorder(), helperOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialer_DrivesSession(t *testing.T) {
	ctrl := session.New(session.Config{
		EnginePath:  os.Args[0],
		MultiPV:     1,
		StableDepth: 3,
		AckTimeout:  5 * time.Second,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, NewDialer(helperOptions()))
	defer ctrl.Shutdown()

	snaps := make(chan session.Snapshot, 16)
	done := make(chan session.Completion, 1)
	ctrl.OnSnapshot(func(s session.Snapshot) { snaps <- s })
	ctrl.OnComplete(func(c session.Completion) { done <- c })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Initialize(ctx).Wait(ctx))
	assert.Equal(t, "Helper", ctrl.Identity().Name)

	ctrl.RequestAnalysis("startpos", 4)
	select {
	case c := <-done:
		assert.Equal(t, "e2e4", c.BestMove)
		assert.Equal(t, "startpos", c.PositionID)
	case <-ctx.Done():
		t.Fatal("search did not complete")
	}

	// depth 3, depth 4, then the bestmove snapshot.
	require.Len(t, snaps, 3)
	<-snaps
	<-snaps
	final := <-snaps
	assert.Equal(t, 4, final.Depth)
	assert.Equal(t, "e2e4", final.BestMove)
}
