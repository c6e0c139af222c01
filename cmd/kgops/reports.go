package main

import (
	"context"

	"github.com/OFFIS-RIT/kgops/internal/app"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <userId>",
	Short: "Check that every completed document has a knowledge graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Validation.Validate(ctx, args[0])
			if err != nil {
				return err
			}
			printValidation(cmd.OutOrStdout(), rep)
			return nil
		})
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics <userId>",
	Short: "Summarize a user's customer relationship graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Analytics.ForUser(ctx, args[0])
			if err != nil {
				return err
			}
			printAnalytics(cmd.OutOrStdout(), args[0], rep)
			return nil
		})
	},
}
