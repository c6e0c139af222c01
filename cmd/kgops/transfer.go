package main

import (
	"context"
	"fmt"
	"os"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/pkg/transfer"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <userId> [path]",
	Short: "Export a user's documents and graph statistics as JSON",
	Long:  `Writes the export to path, or to export-<userId>-<timestamp>.json when path is omitted. Raw document content is not included.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			f, err := a.Transfer.Export(ctx, args[0])
			if err != nil {
				return err
			}
			path := fmt.Sprintf("export-%s-%s.json", args[0], f.ExportedAt.Format("20060102T150405Z"))
			if len(args) == 2 {
				path = args[1]
			}
			out, err := os.Create(path)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := transfer.WriteExport(out, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d documents to %s\n", f.Metadata.TotalDocuments, path)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <userId> <path>",
	Short: "Reconcile an export with the stored documents",
	Long:  `Reads an export and reports which documents are already stored. Documents missing from the store cannot be restored because exports carry no raw content.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			in, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer in.Close()
			res, err := a.Transfer.Import(ctx, args[0], in)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), res)
			return nil
		})
	},
}
