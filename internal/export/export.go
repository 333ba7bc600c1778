// Package export writes the products of a catalog to parquet or YAML files.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/storage"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// ProductRow is one exported product with the drawing it belongs to
type ProductRow struct {
	CatalogID    string `parquet:"catalog_id" yaml:"catalogid"`
	CatalogName  string `parquet:"catalog_name" yaml:"catalogname"`
	DrawingPage  int32  `parquet:"drawing_page" yaml:"drawingpage"`
	DrawingTitle string `parquet:"drawing_title" yaml:"drawingtitle"`
	SourcePage   string `parquet:"source_page" yaml:"sourcepage"`
	RefNo        int32  `parquet:"ref_no" yaml:"refno"`
	Code         string `parquet:"code" yaml:"code"`
	Name         string `parquet:"name" yaml:"name"`
	Hotspots     int32  `parquet:"hotspots" yaml:"hotspots"`
}

// Collect loads the catalog's products in page order
func Collect(ctx context.Context, store storage.Store, catalogID uuid.UUID) ([]ProductRow, error) {
	catalog, err := store.GetCatalog(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	pages, err := store.ListPages(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	hotspots, err := store.ListHotspots(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hotspots: %w", err)
	}

	linked := make(map[uuid.UUID]int32)
	for _, h := range hotspots {
		if h.ProductID != nil {
			linked[*h.ProductID]++
		}
	}

	var rows []ProductRow
	for _, page := range pages {
		products, err := store.ListProductsByPage(ctx, page.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list products of page %d: %w", page.PageNumber, err)
		}
		for _, p := range products {
			rows = append(rows, ProductRow{
				CatalogID:    catalog.ID.String(),
				CatalogName:  catalog.Name,
				DrawingPage:  int32(page.PageNumber),
				DrawingTitle: page.AiDescription,
				SourcePage:   p.PageNumber,
				RefNo:        int32(p.RefNo),
				Code:         p.Code,
				Name:         p.Name,
				Hotspots:     linked[p.ID],
			})
		}
	}
	return rows, nil
}

// Write saves rows to path; the format follows the file extension
func Write(path string, rows []ProductRow) error {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".parquet":
		return writeParquet(path, rows)
	case ".yaml", ".yml":
		return writeYAML(path, rows)
	default:
		return fmt.Errorf("unsupported file format: %s (supported: .parquet, .yaml)", ext)
	}
}

func writeParquet(path string, rows []ProductRow) error {
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	slog.Debug("Wrote parquet file", "path", path, "rows", len(rows))
	return nil
}

func writeYAML(path string, rows []ProductRow) error {
	data, err := yaml.Marshal(map[string][]ProductRow{"products": rows})
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	slog.Debug("Wrote YAML file", "path", path, "rows", len(rows))
	return nil
}
