package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/internal/db"

	"github.com/spf13/cobra"
)

var migrationsDir string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [days]",
	Short: "Delete corpus files and finished job records older than days",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days := cfg.FineTune.RetentionDays
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid retention %q: %w", args[0], err)
			}
			days = n
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.FineTune.Cleanup(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d artifacts and %d job records older than %s\n",
				res.ArtifactsDeleted, res.JobsDeleted, res.Cutoff.Format("2006-01-02"))
			return nil
		})
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := db.Migrate(cfg.Database.URL, migrationsDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
		return nil
	},
}

func init() {
	dbMigrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "Read migrations from this directory instead of the built-in set")
	dbCmd.AddCommand(dbMigrateCmd)
}
