package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// DB is the subset of *sql.DB and *sql.Tx the queries need
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLiteStore persists catalogs in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCatalog(ctx context.Context, catalog *models.Catalog) error {
	if catalog.ID == uuid.Nil {
		catalog.ID = uuid.New()
	}
	if catalog.CreatedAt.IsZero() {
		catalog.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO catalogs (id, name, description, pdf_url, status, machine_brand, machine_model, machine_group, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		catalog.ID, catalog.Name, catalog.Description, catalog.PdfURL, catalog.Status,
		catalog.MachineBrand, catalog.MachineModel, catalog.MachineGroup, catalog.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert catalog: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCatalog(ctx context.Context, id uuid.UUID) (*models.Catalog, error) {
	query := `
		SELECT id, name, description, pdf_url, status, machine_brand, machine_model, machine_group, created_at, updated_at
		FROM catalogs WHERE id = ?
	`
	catalog := &models.Catalog{}
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&catalog.ID, &catalog.Name, &catalog.Description, &catalog.PdfURL, &catalog.Status,
		&catalog.MachineBrand, &catalog.MachineModel, &catalog.MachineGroup, &catalog.CreatedAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	if updatedAt.Valid {
		catalog.UpdatedAt = updatedAt.Time
	}
	return catalog, nil
}

func (s *SQLiteStore) UpdateCatalog(ctx context.Context, catalog *models.Catalog) error {
	catalog.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE catalogs
		SET name = ?, description = ?, pdf_url = ?, status = ?, machine_brand = ?, machine_model = ?, machine_group = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		catalog.Name, catalog.Description, catalog.PdfURL, catalog.Status,
		catalog.MachineBrand, catalog.MachineModel, catalog.MachineGroup, catalog.UpdatedAt, catalog.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update catalog: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AddPages(ctx context.Context, pages []models.Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO catalog_pages (id, catalog_id, page_number, image_url, ai_description)
		VALUES (?, ?, ?, ?, ?)
	`
	for i := range pages {
		if pages[i].ID == uuid.Nil {
			pages[i].ID = uuid.New()
		}
		p := pages[i]
		if _, err := tx.ExecContext(ctx, query, p.ID, p.CatalogID, p.PageNumber, p.ImageURL, p.AiDescription); err != nil {
			return fmt.Errorf("failed to insert page %d: %w", p.PageNumber, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListPages(ctx context.Context, catalogID uuid.UUID) ([]models.Page, error) {
	query := `
		SELECT id, catalog_id, page_number, image_url, ai_description
		FROM catalog_pages WHERE catalog_id = ?
		ORDER BY page_number
	`
	rows, err := s.db.QueryContext(ctx, query, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.ID, &p.CatalogID, &p.PageNumber, &p.ImageURL, &p.AiDescription); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

const productColumns = `id, catalog_id, page_id, ref_no, code, name, page_number, created_at`

func (s *SQLiteStore) ListProducts(ctx context.Context, catalogID uuid.UUID) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE catalog_id = ? ORDER BY created_at, rowid`
	return queryProducts(ctx, s.db, query, catalogID)
}

func (s *SQLiteStore) ListProductsByPage(ctx context.Context, pageID uuid.UUID) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE page_id = ? ORDER BY created_at, rowid`
	return queryProducts(ctx, s.db, query, pageID)
}

func queryProducts(ctx context.Context, db DB, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.CatalogID, &p.PageID, &p.RefNo, &p.Code, &p.Name, &p.PageNumber, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const hotspotColumns = `h.id, h.page_id, h.left_pct, h.top_pct, h.width_pct, h.height_pct, h.label, h.is_ai_detected, h.ai_confidence, h.product_id, h.created_at`

func (s *SQLiteStore) ListHotspots(ctx context.Context, catalogID uuid.UUID) ([]models.Hotspot, error) {
	query := `
		SELECT ` + hotspotColumns + `
		FROM hotspots h JOIN catalog_pages p ON p.id = h.page_id
		WHERE p.catalog_id = ?
		ORDER BY h.created_at, h.rowid
	`
	return queryHotspots(ctx, s.db, query, catalogID)
}

func (s *SQLiteStore) ListHotspotsByPage(ctx context.Context, pageID uuid.UUID) ([]models.Hotspot, error) {
	query := `SELECT ` + hotspotColumns + ` FROM hotspots h WHERE h.page_id = ? ORDER BY h.created_at, h.rowid`
	return queryHotspots(ctx, s.db, query, pageID)
}

func queryHotspots(ctx context.Context, db DB, query string, args ...interface{}) ([]models.Hotspot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hotspots: %w", err)
	}
	defer rows.Close()

	var hotspots []models.Hotspot
	for rows.Next() {
		var h models.Hotspot
		var productID uuid.NullUUID
		if err := rows.Scan(&h.ID, &h.PageID, &h.Left, &h.Top, &h.Width, &h.Height, &h.Label,
			&h.IsAiDetected, &h.AiConfidence, &productID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hotspot: %w", err)
		}
		if productID.Valid {
			id := productID.UUID
			h.ProductID = &id
		}
		hotspots = append(hotspots, h)
	}
	return hotspots, rows.Err()
}

func (s *SQLiteStore) LinkHotspots(ctx context.Context, links map[uuid.UUID]uuid.UUID) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for hotspotID, productID := range links {
		if _, err := tx.ExecContext(ctx, `UPDATE hotspots SET product_id = ? WHERE id = ?`, productID, hotspotID); err != nil {
			return fmt.Errorf("failed to link hotspot %s: %w", hotspotID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) FindPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	query := `SELECT id, catalog_id, page_number, image_url, ai_description FROM catalog_pages WHERE id = ?`
	p := &models.Page{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.CatalogID, &p.PageNumber, &p.ImageURL, &p.AiDescription)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	return p, nil
}

func (t *sqliteTx) UpdatePageTitle(ctx context.Context, pageID uuid.UUID, title string) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE catalog_pages SET ai_description = ? WHERE id = ?`, title, pageID); err != nil {
		return fmt.Errorf("failed to update page title: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteProductsByPage(ctx context.Context, pageID uuid.UUID) (int, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM products WHERE page_id = ?`, pageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (t *sqliteTx) DeleteHotspotsByPage(ctx context.Context, pageID uuid.UUID) (int, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM hotspots WHERE page_id = ?`, pageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete hotspots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (t *sqliteTx) AddProducts(ctx context.Context, products []models.Product) error {
	query := `INSERT INTO products (` + productColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, p := range products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, err := t.tx.ExecContext(ctx, query,
			p.ID, p.CatalogID, p.PageID, p.RefNo, p.Code, p.Name, p.PageNumber, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert product %q: %w", p.Code, err)
		}
	}
	return nil
}

func (t *sqliteTx) AddHotspots(ctx context.Context, hotspots []models.Hotspot) error {
	query := `
		INSERT INTO hotspots (id, page_id, left_pct, top_pct, width_pct, height_pct, label, is_ai_detected, ai_confidence, product_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, h := range hotspots {
		if h.ID == uuid.Nil {
			h.ID = uuid.New()
		}
		var productID uuid.NullUUID
		if h.ProductID != nil {
			productID = uuid.NullUUID{UUID: *h.ProductID, Valid: true}
		}
		if _, err := t.tx.ExecContext(ctx, query,
			h.ID, h.PageID, h.Left, h.Top, h.Width, h.Height, h.Label, h.IsAiDetected, h.AiConfidence, productID, h.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert hotspot: %w", err)
		}
	}
	return nil
}

func (t *sqliteTx) SaveChanges() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
