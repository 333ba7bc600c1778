package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/katalogcu/partalog/internal/images"
	"github.com/katalogcu/partalog/internal/models"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var (
		name        string
		description string
		dir         string
		pdf         string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create a catalog from a directory of page images",
		Long: `Creates a catalog and one page per image in the directory.
Images are numbered in file name order and copied under the web root.
JPEG, PNG and WebP files are accepted; anything else is skipped.`,
		Example: `  partalog import --name "MF-7900" --dir scans/mf7900
  partalog import --name "MF-7900" --dir scans/mf7900 --pdf scans/mf7900.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := images.ScanDir(dir)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return fmt.Errorf("no page images found in %s", dir)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			catalog := &models.Catalog{
				Name:        name,
				Description: description,
				Status:      models.StatusDraft,
			}
			if err := a.store.CreateCatalog(ctx, catalog); err != nil {
				return fmt.Errorf("failed to create catalog: %w", err)
			}

			uploadDir := filepath.Join(a.cfg.Images.WebRoot, "uploads", catalog.ID.String())
			if err := os.MkdirAll(uploadDir, 0755); err != nil {
				return fmt.Errorf("failed to create uploads directory: %w", err)
			}
			urlFor := func(file string) string {
				return path.Join("/uploads", catalog.ID.String(), file)
			}

			pages := make([]models.Page, 0, len(found))
			for i, img := range found {
				file := filepath.Base(img.Path)
				if err := copyFile(img.Path, filepath.Join(uploadDir, file)); err != nil {
					return err
				}
				pages = append(pages, models.Page{
					CatalogID:  catalog.ID,
					PageNumber: i + 1,
					ImageURL:   urlFor(file),
				})
				slog.Debug("Page imported", "page", i+1, "file", file, "format", img.Format, "width", img.Width, "height", img.Height)
			}
			if err := a.store.AddPages(ctx, pages); err != nil {
				return fmt.Errorf("failed to add pages: %w", err)
			}

			if pdf != "" {
				file := filepath.Base(pdf)
				if err := copyFile(pdf, filepath.Join(uploadDir, file)); err != nil {
					return err
				}
				catalog.PdfURL = urlFor(file)
				if err := a.store.UpdateCatalog(ctx, catalog); err != nil {
					return fmt.Errorf("failed to save catalog PDF: %w", err)
				}
			}

			slog.Info("Catalog imported", "catalog_id", catalog.ID, "name", catalog.Name, "pages", len(pages))
			fmt.Fprintln(cmd.OutOrStdout(), catalog.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Catalog name")
	cmd.Flags().StringVar(&description, "description", "", "Catalog description")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of page images")
	cmd.Flags().StringVar(&pdf, "pdf", "", "Source PDF of the catalog")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
