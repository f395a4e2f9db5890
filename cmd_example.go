package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jacokyle01/analysis-session/models"
	"github.com/jacokyle01/analysis-session/worker"
)

func newExampleCmd(flags *globalFlags) *cobra.Command {
	var fen string
	var depth int
	cmd := &cobra.Command{
		Use:   "example",
		Short: "Run a server and a worker, analyze one position, print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			if depth <= 0 {
				depth = cfg.Server.DefaultDepth
			}
			cfg.Engine = fitStableDepth(cfg.Engine, depth)

			srv, err := openServer(cmd.Context(), cfg.Server, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			engine, err := startEngine(cmd.Context(), cfg.Engine, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			base := fmt.Sprintf("http://127.0.0.1:%d", ln.Addr().(*net.TCPAddr).Port)
			cfg.Worker.ServerURL = base

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Serve(ctx, ln) })
			g.Go(func() error { return worker.NewClient(cfg.Worker, engine, logger).WorkLoop(ctx) })
			g.Go(func() error {
				defer cancel()
				res, err := submitAndWait(ctx, base, models.Job{FEN: fen, Depth: depth, TimeMS: cfg.Server.DefaultTimeMS})
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&fen, "fen", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", "position to analyze")
	cmd.Flags().IntVar(&depth, "depth", 0, "search depth (0 uses the server default)")
	return cmd
}

// submitAndWait posts job to /analyze and polls /get_result until it is
// available.
func submitAndWait(ctx context.Context, base string, job models.Job) (models.Result, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return models.Result{}, err
	}

	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := doJSON(ctx, http.MethodPost, base+"/analyze", body, &submitted); err != nil {
		return models.Result{}, fmt.Errorf("submit job: %w", err)
	}

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		var res models.Result
		err := doJSON(ctx, http.MethodGet, base+"/get_result?job_id="+submitted.JobID, nil, &res)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, errNotReady) {
			return models.Result{}, err
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return models.Result{}, ctx.Err()
		}
	}
}

var errNotReady = errors.New("result not ready")

func doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return errNotReady
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
}
