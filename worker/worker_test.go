package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/analysis-session/config"
	"github.com/jacokyle01/analysis-session/internal/enginetest"
	"github.com/jacokyle01/analysis-session/models"
	"github.com/jacokyle01/analysis-session/primaryserver"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAnalyzer fails a fixed number of times, then answers e2e4.
type stubAnalyzer struct {
	mu       sync.Mutex
	failures int
	alive    bool
	restarts int
}

func (s *stubAnalyzer) Analyze(_ context.Context, job models.Job) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		s.alive = false
		return models.Result{}, errors.New("engine crashed")
	}
	return models.Result{JobID: job.ID, BestMove: "e2e4", Depth: job.Depth}, nil
}

func (s *stubAnalyzer) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *stubAnalyzer) Restart(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
	s.alive = true
	return nil
}

func testServer(t *testing.T) (*primaryserver.Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default().Server
	cfg.PollWait = 20 * time.Millisecond
	srv := primaryserver.NewServer(cfg, nil, discardLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func testClient(url string, a Analyzer) *Client {
	return NewClient(config.Worker{
		ServerURL:  url,
		PollRate:   100,
		PollBurst:  1,
		RetryDelay: 10 * time.Millisecond,
	}, a, discardLogger())
}

func waitResult(t *testing.T, srv *primaryserver.Server, jobID string) models.Result {
	t.Helper()
	var res models.Result
	require.Eventually(t, func() bool {
		r, ok, err := srv.GetResult(context.Background(), jobID)
		res = r
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)
	return res
}

func runLoop(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.WorkLoop(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("work loop did not stop")
		}
	})
}

func TestClient_ProcessesJob(t *testing.T) {
	srv, ts := testServer(t)
	require.NoError(t, srv.AddJob(models.Job{ID: "j1", FEN: startFEN, Depth: 7}))

	runLoop(t, testClient(ts.URL, &stubAnalyzer{alive: true}))

	res := waitResult(t, srv, "j1")
	assert.Equal(t, "e2e4", res.BestMove)
	assert.Equal(t, 7, res.Depth)
	assert.Empty(t, res.Error)
}

func TestClient_ReportsFailureAndRestarts(t *testing.T) {
	srv, ts := testServer(t)
	stub := &stubAnalyzer{alive: true, failures: 1}
	require.NoError(t, srv.AddJob(models.Job{ID: "bad", FEN: startFEN, Depth: 3}))
	require.NoError(t, srv.AddJob(models.Job{ID: "good", FEN: startFEN, Depth: 3}))

	runLoop(t, testClient(ts.URL, stub))

	bad := waitResult(t, srv, "bad")
	assert.Equal(t, "engine crashed", bad.Error)
	good := waitResult(t, srv, "good")
	assert.Equal(t, "e2e4", good.BestMove)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Equal(t, 1, stub.restarts)
}

func TestClient_ShallowSearchReportedAsError(t *testing.T) {
	srv, ts := testServer(t)
	e := newTestEngine(t, enginetest.NewDialer(enginetest.Config{Moves: []string{"e2e4"}, Score: 35}))

	require.NoError(t, srv.AddJob(models.Job{ID: "j1", FEN: startFEN, Depth: 1}))
	runLoop(t, testClient(ts.URL, e))

	res := waitResult(t, srv, "j1")
	assert.Contains(t, res.Error, ErrShallowSearch.Error())
	assert.Empty(t, res.BestMove)
	assert.Zero(t, res.Depth)
}

func TestClient_FetchJob(t *testing.T) {
	_, ts := testServer(t)
	c := testClient(ts.URL, &stubAnalyzer{alive: true})

	_, ok, err := c.fetchJob(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	_, _, err = testClient(broken.URL, &stubAnalyzer{}).fetchJob(context.Background())
	assert.Error(t, err)
}

func TestClient_EndToEndWithSession(t *testing.T) {
	srv, ts := testServer(t)
	e := newTestEngine(t, enginetest.NewDialer(enginetest.Config{
		Moves:  []string{"g1f3"},
		Ponder: "g8f6",
		Score:  18,
	}))

	require.NoError(t, srv.AddJob(models.Job{ID: "j1", FEN: startFEN, Depth: 5}))
	runLoop(t, testClient(ts.URL, e))

	res := waitResult(t, srv, "j1")
	assert.Equal(t, "g1f3", res.BestMove)
	assert.Equal(t, "Nf3", res.BestMoveSAN)
	assert.Equal(t, 18, res.Eval)
	assert.Equal(t, 5, res.Depth)
}
