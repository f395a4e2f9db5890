package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/analysis-session/config"
	"github.com/jacokyle01/analysis-session/session"
	"github.com/jacokyle01/analysis-session/uci"
)

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var (
		depth      int
		multiPV    int
		enginePath string
	)
	cmd := &cobra.Command{
		Use:   "analyze <fen|startpos>",
		Short: "Analyze one position on a local engine and print each snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if enginePath != "" {
				cfg.Engine.Path = enginePath
			}
			if multiPV > 0 {
				cfg.Engine.MultiPV = multiPV
			}
			cfg.Engine = fitStableDepth(cfg.Engine, depth)
			ctrl := session.New(cfg.Engine.Session(logger), engineDialer(logger))
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), ctrl, args[0], depth)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 20, "search depth")
	cmd.Flags().IntVar(&multiPV, "multipv", 0, "ranked lines (overrides the config)")
	cmd.Flags().StringVar(&enginePath, "engine", "", "engine binary (overrides the config)")
	return cmd
}

// runAnalyze searches position on ctrl, writes every snapshot to out, and
// returns once the engine reports its best move. Cancelling ctx stops the
// search.
func runAnalyze(ctx context.Context, out io.Writer, ctrl *session.Controller, position string, depth int) error {
	defer ctrl.Shutdown()

	done := make(chan session.Completion, 1)
	fatal := make(chan error, 1)
	ctrl.OnSnapshot(func(s session.Snapshot) { printSnapshot(out, s) })
	ctrl.OnComplete(func(c session.Completion) {
		select {
		case done <- c:
		default:
		}
	})
	ctrl.OnError(func(err error) {
		var engineErr *session.EngineError
		if errors.As(err, &engineErr) {
			fmt.Fprintln(out, "engine:", err)
			return
		}
		select {
		case fatal <- err:
		default:
		}
	})

	if err := ctrl.Initialize(ctx).Wait(ctx); err != nil {
		return err
	}
	ctrl.RequestAnalysis(position, depth)

	select {
	case c := <-done:
		if c.NoMove() {
			fmt.Fprintln(out, "bestmove (none)")
			return nil
		}
		fmt.Fprintf(out, "bestmove %s", c.BestMove)
		if c.Ponder != "" {
			fmt.Fprintf(out, " ponder %s", c.Ponder)
		}
		fmt.Fprintln(out)
		return nil
	case err := <-fatal:
		return err
	case <-ctx.Done():
		ctrl.RequestStop()
		return ctx.Err()
	}
}

// fitStableDepth lowers the publish threshold to depth, so a search shallower
// than the configured stable depth still reports its evaluation. depth <= 0
// leaves cfg alone.
func fitStableDepth(cfg config.Engine, depth int) config.Engine {
	if depth > 0 {
		cfg.StableDepth = min(cfg.StableDepth, uci.ClampDepth(depth))
	}
	return cfg
}

func printSnapshot(out io.Writer, s session.Snapshot) {
	if s.BestMove != "" {
		return
	}
	if len(s.Lines) == 0 {
		fmt.Fprintf(out, "depth %d %s pv %s\n", s.Depth, s.Score, strings.Join(s.Moves, " "))
		return
	}
	for _, l := range s.Lines {
		fmt.Fprintf(out, "depth %d multipv %d %s pv %s\n", l.Depth, l.Rank, l.Score, strings.Join(l.Moves, " "))
	}
}
