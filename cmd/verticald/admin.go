package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/verticald/internal/engine"
)

type healthOutput struct {
	engine.HealthReport
	Telemetry      string `json:"telemetry"`
	TelemetryError string `json:"telemetry_error,omitempty"`
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the index backend and every vertical",
		Long: `Health pings the vector store and counts the chunks of every configured
vertical. The command fails when the engine is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				report := a.engine.Health(ctx)
				out := healthOutput{HealthReport: report}
				state, telErr := a.telemetry.Status()
				out.Telemetry = state
				if telErr != nil {
					out.TelemetryError = telErr.Error()
				}
				if opts.json {
					if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
						return err
					}
				} else {
					renderHealth(cmd.OutOrStdout(), out)
				}
				if report.Status == engine.StatusUnhealthy {
					return fmt.Errorf("engine is %s: %s", report.Status, report.BackendError)
				}
				return nil
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <vertical>",
		Short: "Show the chunk count of one vertical",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				stats, err := a.engine.GetStatistics(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				renderStatistics(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset <vertical> | --all",
		Short: "Delete indexed chunks",
		Long: `Reset drops a vertical's index. With --all every configured vertical is
reset; verticals that fail are reported and the rest are still cleared.

Examples:
  verticald reset retail
  verticald reset --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all takes no vertical")
			}
			if !all && len(args) != 1 {
				return errors.New("name one vertical or pass --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if all {
					if err := a.engine.ResetAll(ctx); err != nil {
						return err
					}
					fmt.Fprintln(out, healthyStyle.Render("reset all verticals"))
					return nil
				}
				if err := a.engine.ResetVertical(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(out, healthyStyle.Render("reset "+args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reset every vertical")
	return cmd
}
