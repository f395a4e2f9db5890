package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"

	"github.com/jacokyle01/analysis-session/models"
	"github.com/jacokyle01/analysis-session/session"
	"github.com/jacokyle01/analysis-session/uci"
)

var (
	// ErrNoAnalysis is reported when a job's time budget ran out before the
	// engine produced a single usable line.
	ErrNoAnalysis = errors.New("no analysis before time budget expired")

	// ErrShallowSearch is reported when the engine played a move without
	// reaching the session's stable depth, so no evaluation was published.
	ErrShallowSearch = errors.New("search ended below the stable depth")
)

// Engine runs jobs one at a time on a long-lived engine session.
type Engine struct {
	ctrl *session.Controller
	log  *slog.Logger

	mu sync.Mutex // one job at a time

	events  sync.Mutex
	latest  *session.Snapshot
	changed chan struct{}
	done    chan session.Completion
	fatal   chan error
}

// NewEngine starts the engine behind dialer and waits for its handshake.
func NewEngine(ctx context.Context, cfg session.Config, dialer session.Dialer) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		ctrl:    session.New(cfg, dialer),
		log:     logger.With("component", "engine"),
		changed: make(chan struct{}, 1),
		done:    make(chan session.Completion, 4),
		fatal:   make(chan error, 4),
	}
	e.ctrl.OnSnapshot(e.snapshot)
	e.ctrl.OnComplete(func(c session.Completion) {
		select {
		case e.done <- c:
		default:
		}
	})
	e.ctrl.OnError(e.failed)

	if err := e.start(ctx); err != nil {
		e.ctrl.Shutdown()
		return nil, err
	}
	return e, nil
}

func (e *Engine) start(ctx context.Context) error {
	if err := e.ctrl.Initialize(ctx).Wait(ctx); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	id := e.ctrl.Identity()
	e.log.Info("engine ready", "name", id.Name, "author", id.Author)
	return nil
}

// Restart replaces a dead engine with a fresh one.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl.State() != session.StateDestroyed {
		e.ctrl.Shutdown()
	}
	e.drain()
	return e.start(ctx)
}

// Alive reports whether the engine session is still usable.
func (e *Engine) Alive() bool {
	return e.ctrl.State() != session.StateDestroyed
}

// Close shuts the engine down.
func (e *Engine) Close() {
	e.ctrl.Shutdown()
}

func (e *Engine) snapshot(s session.Snapshot) {
	e.events.Lock()
	e.latest = &s
	e.events.Unlock()
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

func (e *Engine) failed(err error) {
	var engineErr *session.EngineError
	if errors.As(err, &engineErr) {
		e.log.Warn("engine error", "message", engineErr.Message)
		return
	}
	select {
	case e.fatal <- err:
	default:
	}
}

// latestFor returns the newest snapshot of a search started after epoch.
func (e *Engine) latestFor(epoch uint64) (session.Snapshot, bool) {
	e.events.Lock()
	defer e.events.Unlock()
	if e.latest == nil || e.latest.Epoch <= epoch {
		return session.Snapshot{}, false
	}
	return *e.latest, true
}

// drain forgets events left over from an earlier job.
func (e *Engine) drain() {
	e.events.Lock()
	e.latest = nil
	e.events.Unlock()
	for {
		select {
		case <-e.done:
		case <-e.fatal:
		case <-e.changed:
		default:
			return
		}
	}
}

// Analyze searches the job's position until the engine finishes, the job's
// time budget runs out, or ctx ends.
func (e *Engine) Analyze(ctx context.Context, job models.Job) (models.Result, error) {
	pos, err := job.Position()
	if err != nil {
		return models.Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.Alive() {
		return models.Result{}, session.ErrDestroyed
	}
	e.drain()

	if job.MultiPV > 0 && job.MultiPV != e.ctrl.MultiPV() {
		e.ctrl.RequestOptionChange(uci.MultiPVOption, strconv.Itoa(job.MultiPV))
	}

	started := time.Now()
	epoch := e.ctrl.Epoch()
	e.ctrl.RequestAnalysis(job.FEN, job.Depth)

	var budget <-chan time.Time
	if job.TimeMS > 0 {
		timer := time.NewTimer(time.Duration(job.TimeMS) * time.Millisecond)
		defer timer.Stop()
		budget = timer.C
	}

	for {
		select {
		case c := <-e.done:
			if c.Epoch <= epoch || c.PositionID != job.FEN {
				continue
			}
			snap, ok := e.latestFor(epoch)
			if !ok && !c.NoMove() {
				return models.Result{}, fmt.Errorf("%w: job depth %d, best move %s", ErrShallowSearch, job.Depth, c.BestMove)
			}
			res := buildResult(job, pos, snap, c.BestMove, c.Ponder)
			res.Time = int(time.Since(started).Milliseconds())
			return res, nil

		case err := <-e.fatal:
			return models.Result{}, err

		case <-budget:
			e.ctrl.RequestStop()
			snap, ok := e.latestFor(epoch)
			if !ok || len(snap.Moves) == 0 {
				return models.Result{}, ErrNoAnalysis
			}
			e.log.Debug("time budget expired", "job_id", job.ID, "depth", snap.Depth)
			ponder := ""
			if len(snap.Moves) > 1 {
				ponder = snap.Moves[1]
			}
			res := buildResult(job, pos, snap, snap.Moves[0], ponder)
			res.Time = int(time.Since(started).Milliseconds())
			return res, nil

		case <-e.changed:

		case <-ctx.Done():
			e.ctrl.RequestStop()
			return models.Result{}, ctx.Err()
		}
	}
}

// buildResult converts the final snapshot of a search into a Result.
func buildResult(job models.Job, pos *chess.Position, snap session.Snapshot, best, ponder string) models.Result {
	res := models.Result{
		JobID:     job.ID,
		BestMove:  best,
		Ponder:    ponder,
		Depth:     snap.Depth,
		PV:        strings.Join(snap.Moves, " "),
		Nodes:     snap.Nodes,
		NodesPerS: snap.NPS,
	}
	res.Eval, res.Mate = evaluation(snap.Score)

	for _, l := range snap.Lines {
		line := models.Line{Rank: l.Rank, Depth: l.Depth, PV: strings.Join(l.Moves, " ")}
		line.Eval, line.Mate = evaluation(l.Score)
		res.Lines = append(res.Lines, line)
	}

	if best == "" {
		res.Outcome = outcome(pos)
		return res
	}
	if m, err := (chess.UCINotation{}).Decode(pos, best); err == nil {
		res.BestMoveSAN = chess.AlgebraicNotation{}.Encode(pos, m)
	}
	return res
}

func evaluation(s uci.Score) (eval, mate int) {
	switch s.Kind {
	case uci.ScoreCentipawns:
		return s.Value, 0
	case uci.ScoreMate:
		return 0, s.Value
	}
	return 0, 0
}

func outcome(pos *chess.Position) string {
	switch pos.Status() {
	case chess.Checkmate:
		return "checkmate"
	case chess.Stalemate:
		return "stalemate"
	}
	return ""
}
