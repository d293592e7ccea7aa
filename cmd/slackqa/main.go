// Package main contains the entrypoint for the slackqa service and its
// maintenance commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgard/slackqa/internal/app"
	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("Command failed", "error", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slackqa",
		Short: "Import answered Slack questions and serve them with related questions",
		Long: `slackqa imports question threads from a Slack channel, pairs each question
with its accepted answer, extracts keywords, links related questions and
serves the result over HTTP.

Configuration is read from config.yaml (or --config) and SLACKQA_* environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default: ./config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newRelateCmd(),
		newMaintenanceCmd(),
		newStatsCmd(),
	)
	return root
}

// bootstrap loads configuration, sets up logging and wires the application.
func bootstrap(cmd *cobra.Command) (*app.App, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Debug("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", "error", err)
		return nil, nil, err
	}
	return a, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
