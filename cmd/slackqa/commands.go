package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/slackqa/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled import and relatedness passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			log.Info("Starting slackqa...")
			return a.Serve(cmd.Context())
		},
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import answered questions for a date range",
		Long: `Import reads the question channel and the accepted answers for a date range,
extracts keywords and stores the new pairs. Without --from and --to it imports
the configured look-back window ending today.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			relate, _ := cmd.Flags().GetBool("relate")

			a, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			window := a.Pipeline.DefaultWindow(time.Now())
			if from != "" || to != "" {
				if window, err = parseWindow(from, to); err != nil {
					return err
				}
			}

			stats, err := a.Coordinator.ImportWindow(cmd.Context(), window)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if !relate {
				return nil
			}
			relStats, err := a.Coordinator.Relate(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), relStats)
		},
	}
	cmd.Flags().String("from", "", "first day to import (YYYY-MM-DD, local time)")
	cmd.Flags().String("to", "", "last day to import, inclusive (YYYY-MM-DD, local time)")
	cmd.Flags().Bool("relate", false, "recompute related questions after the import")
	return cmd
}

func newRelateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relate",
		Short: "Recompute the related questions of every stored question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Coordinator.Relate(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newMaintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintenance",
		Short: "Vacuum the database and refresh planner statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Coordinator.Maintenance(cmd.Context())
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of stored questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Queries.Count(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"questions": n})
		},
	}
}

// parseWindow builds an inclusive window from two local dates. A missing
// bound defaults to the other one.
func parseWindow(from, to string) (pipeline.Window, error) {
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	start, err := time.ParseInLocation(time.DateOnly, from, time.Local)
	if err != nil {
		return pipeline.Window{}, fmt.Errorf("invalid --from date: %w", err)
	}
	last, err := time.ParseInLocation(time.DateOnly, to, time.Local)
	if err != nil {
		return pipeline.Window{}, fmt.Errorf("invalid --to date: %w", err)
	}
	if last.Before(start) {
		return pipeline.Window{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return pipeline.Window{
		Start: start,
		End:   last.AddDate(0, 0, 1).Add(-time.Microsecond),
	}, nil
}
