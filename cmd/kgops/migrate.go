package main

import (
	"context"

	"github.com/OFFIS-RIT/kgops/internal/app"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [userId]",
	Short: "Build knowledge graphs for pending documents",
	Long:  `Processes every pending document, or only those of userId, and records a graph reference and metadata on each. Documents left in processing by an earlier run are re-queued first.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := ""
		if len(args) == 1 {
			userID = args[0]
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sum, err := a.Migration.Migrate(ctx, userID)
			printSummary(cmd.OutOrStdout(), sum)
			return err
		})
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <userId>",
	Short: "Rebuild knowledge graphs for a user's completed documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sum, err := a.Migration.Rebuild(ctx, args[0])
			printSummary(cmd.OutOrStdout(), sum)
			return err
		})
	},
}
