package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := ctx.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, stats)
			}

			rows := [][]string{
				{"Pending", strconv.Itoa(stats.Pending)},
				{"Processing", strconv.Itoa(stats.Processing)},
				{"Completed", strconv.Itoa(stats.Completed)},
				{"Failed", strconv.Itoa(stats.Failed)},
				{"Retry", strconv.Itoa(stats.Retry)},
				{"Total", strconv.Itoa(stats.Total)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().Health(cmd.Context()); err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", ctx.apiAddr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon healthy at %s\n", ctx.apiAddr())
			return nil
		},
	}
}
