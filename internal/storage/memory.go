package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
)

// MemoryStore keeps everything in maps. Products and hotspots are kept in
// slices so that list order matches insertion order.
type MemoryStore struct {
	catalogs map[uuid.UUID]*models.Catalog
	pages    map[uuid.UUID]*models.Page
	products []models.Product
	hotspots []models.Hotspot
	mu       sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		catalogs: make(map[uuid.UUID]*models.Catalog),
		pages:    make(map[uuid.UUID]*models.Page),
	}
}

func (s *MemoryStore) CreateCatalog(ctx context.Context, catalog *models.Catalog) error {
	if catalog.ID == uuid.Nil {
		catalog.ID = uuid.New()
	}
	if catalog.CreatedAt.IsZero() {
		catalog.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.catalogs[catalog.ID]; exists {
		return fmt.Errorf("catalog %s already exists", catalog.ID)
	}
	c := *catalog
	s.catalogs[c.ID] = &c
	return nil
}

func (s *MemoryStore) GetCatalog(ctx context.Context, id uuid.UUID) (*models.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	catalog, exists := s.catalogs[id]
	if !exists {
		return nil, ErrNotFound
	}
	c := *catalog
	return &c, nil
}

func (s *MemoryStore) UpdateCatalog(ctx context.Context, catalog *models.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.catalogs[catalog.ID]; !exists {
		return ErrNotFound
	}
	catalog.UpdatedAt = time.Now().UTC()
	c := *catalog
	s.catalogs[c.ID] = &c
	return nil
}

func (s *MemoryStore) AddPages(ctx context.Context, pages []models.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range pages {
		if _, exists := s.catalogs[pages[i].CatalogID]; !exists {
			return fmt.Errorf("page %d: catalog %s: %w", pages[i].PageNumber, pages[i].CatalogID, ErrNotFound)
		}
		if pages[i].ID == uuid.Nil {
			pages[i].ID = uuid.New()
		}
		p := pages[i]
		s.pages[p.ID] = &p
	}
	return nil
}

func (s *MemoryStore) ListPages(ctx context.Context, catalogID uuid.UUID) ([]models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Page
	for _, p := range s.pages {
		if p.CatalogID == catalogID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PageNumber < result[j].PageNumber })
	return result, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, catalogID uuid.UUID) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Product
	for _, p := range s.products {
		if p.CatalogID == catalogID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListProductsByPage(ctx context.Context, pageID uuid.UUID) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Product
	for _, p := range s.products {
		if p.PageID == pageID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListHotspots(ctx context.Context, catalogID uuid.UUID) ([]models.Hotspot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Hotspot
	for _, h := range s.hotspots {
		if page, ok := s.pages[h.PageID]; ok && page.CatalogID == catalogID {
			result = append(result, cloneHotspot(h))
		}
	}
	return result, nil
}

func (s *MemoryStore) ListHotspotsByPage(ctx context.Context, pageID uuid.UUID) ([]models.Hotspot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Hotspot
	for _, h := range s.hotspots {
		if h.PageID == pageID {
			result = append(result, cloneHotspot(h))
		}
	}
	return result, nil
}

func (s *MemoryStore) LinkHotspots(ctx context.Context, links map[uuid.UUID]uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.hotspots {
		if productID, ok := links[s.hotspots[i].ID]; ok {
			id := productID
			s.hotspots[i].ProductID = &id
		}
	}
	return nil
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	return &memoryTx{store: s}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneHotspot(h models.Hotspot) models.Hotspot {
	if h.ProductID != nil {
		id := *h.ProductID
		h.ProductID = &id
	}
	return h
}

// memoryTx buffers mutations and applies them under one lock on SaveChanges
type memoryTx struct {
	store *MemoryStore
	ops   []func(s *MemoryStore)
	done  bool
}

func (tx *memoryTx) FindPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	page, exists := tx.store.pages[id]
	if !exists {
		return nil, ErrNotFound
	}
	p := *page
	return &p, nil
}

func (tx *memoryTx) UpdatePageTitle(ctx context.Context, pageID uuid.UUID, title string) error {
	if tx.done {
		return ErrTxDone
	}
	tx.ops = append(tx.ops, func(s *MemoryStore) {
		if page, ok := s.pages[pageID]; ok {
			page.AiDescription = title
		}
	})
	return nil
}

func (tx *memoryTx) DeleteProductsByPage(ctx context.Context, pageID uuid.UUID) (int, error) {
	if tx.done {
		return 0, ErrTxDone
	}
	tx.store.mu.RLock()
	count := 0
	for _, p := range tx.store.products {
		if p.PageID == pageID {
			count++
		}
	}
	tx.store.mu.RUnlock()

	tx.ops = append(tx.ops, func(s *MemoryStore) {
		kept := s.products[:0]
		for _, p := range s.products {
			if p.PageID != pageID {
				kept = append(kept, p)
			}
		}
		s.products = kept
	})
	return count, nil
}

func (tx *memoryTx) DeleteHotspotsByPage(ctx context.Context, pageID uuid.UUID) (int, error) {
	if tx.done {
		return 0, ErrTxDone
	}
	tx.store.mu.RLock()
	count := 0
	for _, h := range tx.store.hotspots {
		if h.PageID == pageID {
			count++
		}
	}
	tx.store.mu.RUnlock()

	tx.ops = append(tx.ops, func(s *MemoryStore) {
		kept := s.hotspots[:0]
		for _, h := range s.hotspots {
			if h.PageID != pageID {
				kept = append(kept, h)
			}
		}
		s.hotspots = kept
	})
	return count, nil
}

func (tx *memoryTx) AddProducts(ctx context.Context, products []models.Product) error {
	if tx.done {
		return ErrTxDone
	}
	batch := make([]models.Product, len(products))
	copy(batch, products)
	for i := range batch {
		if batch[i].ID == uuid.Nil {
			batch[i].ID = uuid.New()
		}
	}
	tx.ops = append(tx.ops, func(s *MemoryStore) {
		s.products = append(s.products, batch...)
	})
	return nil
}

func (tx *memoryTx) AddHotspots(ctx context.Context, hotspots []models.Hotspot) error {
	if tx.done {
		return ErrTxDone
	}
	batch := make([]models.Hotspot, len(hotspots))
	for i, h := range hotspots {
		batch[i] = cloneHotspot(h)
		if batch[i].ID == uuid.Nil {
			batch[i].ID = uuid.New()
		}
	}
	tx.ops = append(tx.ops, func(s *MemoryStore) {
		s.hotspots = append(s.hotspots, batch...)
	})
	return nil
}

func (tx *memoryTx) SaveChanges() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, op := range tx.ops {
		op(tx.store)
	}
	tx.ops = nil
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	tx.ops = nil
	return nil
}
