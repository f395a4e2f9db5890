// Package worker pulls analysis jobs from the server, runs them on a local
// engine and posts the results back.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jacokyle01/analysis-session/config"
	"github.com/jacokyle01/analysis-session/models"
)

// Analyzer runs one job to completion.
type Analyzer interface {
	Analyze(ctx context.Context, job models.Job) (models.Result, error)
	Alive() bool
	Restart(ctx context.Context) error
}

// Client represents a worker client
type Client struct {
	serverURL  string
	engine     Analyzer
	http       *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
	log        *slog.Logger
}

// NewClient creates a new worker client
func NewClient(cfg config.Worker, engine Analyzer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		engine:     engine,
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.PollRate), cfg.PollBurst),
		retryDelay: cfg.RetryDelay,
		log:        logger.With("component", "worker"),
	}
}

// WorkLoop polls for jobs until ctx is cancelled.
func (c *Client) WorkLoop(ctx context.Context) error {
	c.log.Info("starting worker", "server", c.serverURL)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.processJob(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("job round failed", "error", err)
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
		}
	}
}

// processJob fetches one job, analyzes it and submits the result. No job
// available is not an error.
func (c *Client) processJob(ctx context.Context) error {
	job, ok, err := c.fetchJob(ctx)
	if err != nil || !ok {
		return err
	}

	log := c.log.With("job_id", job.ID)
	log.Info("processing job", "fen", job.FEN, "depth", job.Depth)

	if !c.engine.Alive() {
		log.Warn("engine is down, restarting")
		if err := c.engine.Restart(ctx); err != nil {
			return c.submitFailure(ctx, job, fmt.Errorf("restart engine: %w", err))
		}
	}

	result, err := c.engine.Analyze(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("analysis failed", "error", err)
		return c.submitFailure(ctx, job, err)
	}
	result.JobID = job.ID

	log.Info("analysis done", "best_move", result.BestMove, "eval", result.Eval, "depth", result.Depth)
	return c.submitResult(ctx, result)
}

func (c *Client) fetchJob(ctx context.Context) (models.Job, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/job", nil)
	if err != nil {
		return models.Job{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Job{}, false, fmt.Errorf("get job: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		c.log.Debug("no jobs available")
		return models.Job{}, false, nil
	case http.StatusOK:
	default:
		return models.Job{}, false, fmt.Errorf("get job: unexpected status %s", resp.Status)
	}

	var job models.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return models.Job{}, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

func (c *Client) submitFailure(ctx context.Context, job models.Job, cause error) error {
	return errors.Join(cause, c.submitResult(ctx, models.Result{JobID: job.ID, Error: cause.Error()}))
}

func (c *Client) submitResult(ctx context.Context, result models.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/result", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("submit result: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
