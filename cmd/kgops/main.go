package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/internal/config"
	"github.com/OFFIS-RIT/kgops/internal/util"

	"github.com/spf13/cobra"
)

var (
	configFile string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kgops",
	Short:         "Knowledge-graph migration and fine-tune operations",
	Long:          `Migrates stored documents into knowledge graphs, audits the result and drives model fine-tuning from recorded interactions.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		util.LoadEnv()
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		app.InitLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML configuration file (defaults to $KGOPS_CONFIG)")

	rootCmd.AddCommand(migrateCmd, rebuildCmd)
	rootCmd.AddCommand(exportCmd, importCmd)
	rootCmd.AddCommand(validateCmd, analyticsCmd)
	rootCmd.AddCommand(collectCmd, trainCmd, cleanupCmd)
	rootCmd.AddCommand(dbCmd)
}

// withApp connects every backend for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
