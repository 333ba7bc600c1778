package pipeline

import (
	"context"
	"errors"

	"github.com/katalogcu/partalog/internal/models"
)

// ErrImageNotFound is returned by an ImageSource when a page has no backing image
var ErrImageNotFound = errors.New("page image not found")

// ImageSource loads the rendered image of a page
type ImageSource interface {
	Load(ctx context.Context, page models.Page) ([]byte, error)
}

// PageClassifier decides whether a page is a technical drawing, a parts table, or neither.
// An empty title is allowed.
type PageClassifier interface {
	Analyze(ctx context.Context, image []byte) (models.PageAnalysis, error)
}

// HotspotDetector finds numbered markers on a drawing. An empty result is not an error.
type HotspotDetector interface {
	Detect(ctx context.Context, image []byte) ([]models.Detection, error)
}

// TableExtractor reads the rows of a parts table. An empty result is not an error.
type TableExtractor interface {
	Extract(ctx context.Context, image []byte, pageNumber int) ([]models.TableRow, error)
}

// CoverAnalyzer reads machine metadata from a catalog's first page
type CoverAnalyzer interface {
	AnalyzeCover(ctx context.Context, image []byte) (models.CoverMetadata, error)
}

// Hook runs once after a catalog run finished its page loop and matcher pass
type Hook struct {
	Name string
	Run  func(ctx context.Context, catalog *models.Catalog) error
}
