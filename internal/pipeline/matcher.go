package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
)

// MatchHotspots pairs unlinked hotspots with products on the same page.
// A hotspot matches a product when its label equals the product's ref number,
// either exactly or after stripping leading zeros. When several products share
// a ref number the earliest created one wins, ties broken by input order.
// Already linked hotspots and unlabeled hotspots are left alone.
// The result maps hotspot id to product id.
func MatchHotspots(products []models.Product, hotspots []models.Hotspot) map[uuid.UUID]uuid.UUID {
	byPage := make(map[uuid.UUID][]models.Product)
	for _, p := range products {
		byPage[p.PageID] = append(byPage[p.PageID], p)
	}
	for _, list := range byPage {
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	}

	links := make(map[uuid.UUID]uuid.UUID)
	for _, h := range hotspots {
		if h.ProductID != nil || h.Label == "" {
			continue
		}
		candidates := byPage[h.PageID]
		if len(candidates) == 0 {
			continue
		}
		for _, p := range candidates {
			if labelMatches(h.Label, p.RefNo) {
				links[h.ID] = p.ID
				break
			}
		}
	}
	return links
}

func labelMatches(label string, refNo int) bool {
	if refNo <= 0 {
		return false
	}
	ref := strconv.Itoa(refNo)
	return label == ref || strings.TrimLeft(label, "0") == ref
}

// MatchCatalog links the hotspots of a whole catalog to its products and
// returns how many links were written.
func (p *Processor) MatchCatalog(ctx context.Context, catalogID uuid.UUID) (int, error) {
	products, err := p.store.ListProducts(ctx, catalogID)
	if err != nil {
		return 0, fmt.Errorf("failed to load products: %w", err)
	}
	hotspots, err := p.store.ListHotspots(ctx, catalogID)
	if err != nil {
		return 0, fmt.Errorf("failed to load hotspots: %w", err)
	}

	links := MatchHotspots(products, hotspots)
	if len(links) == 0 {
		return 0, nil
	}
	if err := p.store.LinkHotspots(ctx, links); err != nil {
		return 0, fmt.Errorf("failed to save hotspot links: %w", err)
	}
	return len(links), nil
}
