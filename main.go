// Command analysis runs the distributed analysis server, its workers, and a
// local single-position analyzer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/analysis-session/config"
	"github.com/jacokyle01/analysis-session/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "analysis",
		Short:         "Distributed chess position analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")
	root.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "log JSON records")

	root.AddCommand(
		newServerCmd(flags),
		newClientCmd(flags),
		newExampleCmd(flags),
		newAnalyzeCmd(flags),
	)
	return root
}

// load reads the config file, if any, and applies flag overrides.
func (f *globalFlags) load() (config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, nil, err
		}
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logJSON {
		cfg.Log.JSON = true
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Service: "analysis"})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
