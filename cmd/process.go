package cmd

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/pipeline"
	"github.com/katalogcu/partalog/internal/report"
	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var (
		catalogID  string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the page pipeline over one catalog",
		Long: `Classifies every page of a catalog in page order, detects hotspots on
drawings, attaches parts tables to the preceding drawing and links hotspots
to products. Re-running a catalog replaces what earlier runs produced.`,
		Example: `  # Process a catalog
  partalog process --catalog 3f0c...

  # Process and write a YAML run report
  partalog process --catalog 3f0c... --report reports/run.yaml`,
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

			summary, err := a.processor.ProcessCatalog(ctx, id)
			if err != nil {
				return err
			}

			slog.Info("Catalog processed",
				"catalog", summary.CatalogName,
				"pages", len(summary.Pages),
				"drawings", summary.Count(pipeline.OutcomeDrawing),
				"tables", summary.Count(pipeline.OutcomeTableAttached),
				"failed", summary.Count(pipeline.OutcomeFailed),
				"products", summary.ProductsCreated(),
				"hotspots", summary.HotspotsCreated(),
				"linked", summary.HotspotsLinked,
				"duration", summary.Duration())

			if reportPath != "" {
				if err := report.SaveToYAML(reportPath, summary); err != nil {
					return err
				}
				slog.Info("Run report written", "path", reportPath)
			}

			return summary.MatchErr
		},
	}

	cmd.Flags().StringVarP(&catalogID, "catalog", "c", "", "Catalog ID to process")
	cmd.Flags().StringVarP(&reportPath, "report", "r", "", "Write a YAML run report to this path")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}
