// Package storage is the persistence gateway for catalogs, pages, products and hotspots.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrTxDone   = errors.New("transaction already finished")
)

// Store is implemented by the in-memory and SQLite stores.
// List methods return records in a stable order: pages by page number,
// products and hotspots in creation order.
type Store interface {
	CreateCatalog(ctx context.Context, catalog *models.Catalog) error
	GetCatalog(ctx context.Context, id uuid.UUID) (*models.Catalog, error)
	UpdateCatalog(ctx context.Context, catalog *models.Catalog) error

	AddPages(ctx context.Context, pages []models.Page) error
	ListPages(ctx context.Context, catalogID uuid.UUID) ([]models.Page, error)

	ListProducts(ctx context.Context, catalogID uuid.UUID) ([]models.Product, error)
	ListProductsByPage(ctx context.Context, pageID uuid.UUID) ([]models.Product, error)

	ListHotspots(ctx context.Context, catalogID uuid.UUID) ([]models.Hotspot, error)
	ListHotspotsByPage(ctx context.Context, pageID uuid.UUID) ([]models.Hotspot, error)
	// LinkHotspots sets ProductID for every hotspot id in links
	LinkHotspots(ctx context.Context, links map[uuid.UUID]uuid.UUID) error

	// Begin opens a unit of work; nothing it does is visible until SaveChanges
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a per-page unit of work. Rollback after SaveChanges is a no-op.
type Tx interface {
	FindPage(ctx context.Context, id uuid.UUID) (*models.Page, error)
	UpdatePageTitle(ctx context.Context, pageID uuid.UUID, title string) error
	DeleteProductsByPage(ctx context.Context, pageID uuid.UUID) (int, error)
	DeleteHotspotsByPage(ctx context.Context, pageID uuid.UUID) (int, error)
	AddProducts(ctx context.Context, products []models.Product) error
	AddHotspots(ctx context.Context, hotspots []models.Hotspot) error
	SaveChanges() error
	Rollback() error
}
