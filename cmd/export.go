package cmd

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		catalogID string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a catalog's products to parquet or YAML",
		Example: `  partalog export --catalog 3f0c... --output products.parquet
  partalog export --catalog 3f0c... --output products.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(catalogID)
			if err != nil {
				return fmt.Errorf("invalid catalog id %q: %w", catalogID, err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := export.Collect(ctx, a.store, id)
			if err != nil {
				return err
			}
			if err := export.Write(output, rows); err != nil {
				return err
			}

			slog.Info("Products exported", "catalog_id", id, "rows", len(rows), "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&catalogID, "catalog", "c", "", "Catalog ID to export")
	cmd.Flags().StringVarP(&output, "output", "o", "products.parquet", "Output file (.parquet, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}
