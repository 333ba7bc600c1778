package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/queue"
)

// PageDetail is a page with everything attached to it
type PageDetail struct {
	models.Page
	Products []models.Product `json:"products"`
	Hotspots []models.Hotspot `json:"hotspots"`
}

// CatalogDetail is the response of GET /api/catalogs/{id}
type CatalogDetail struct {
	*models.Catalog
	Pages []PageDetail `json:"pages"`
}

func (h *Handler) HandleCatalogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		var request struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			PdfURL      string `json:"pdf_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(request.Name) == "" {
			h.writeError(w, "name is required", http.StatusBadRequest)
			return
		}

		catalog := &models.Catalog{
			Name:        strings.TrimSpace(request.Name),
			Description: request.Description,
			PdfURL:      request.PdfURL,
			Status:      models.StatusDraft,
		}
		if err := h.store.CreateCatalog(r.Context(), catalog); err != nil {
			h.writeError(w, "Failed to create catalog: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSONStatus(w, http.StatusCreated, catalog)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCatalogDetail serves /api/catalogs/{id}, /api/catalogs/{id}/process and /api/catalogs/{id}/pages
func (h *Handler) HandleCatalogDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/catalogs/"), "/")
	rawID, action, _ := strings.Cut(rest, "/")

	catalog, ok := h.getCatalogOrError(w, r, rawID)
	if !ok {
		return
	}

	switch {
	case action == "" && r.Method == "GET":
		h.handleGetCatalog(w, r, catalog)
	case action == "process" && r.Method == "POST":
		h.handleProcess(w, r, catalog)
	case action == "pages" && r.Method == "POST":
		h.HandlePageUpload(w, r, catalog)
	case action == "" || action == "process" || action == "pages":
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleGetCatalog(w http.ResponseWriter, r *http.Request, catalog *models.Catalog) {
	ctx := r.Context()
	pages, err := h.store.ListPages(ctx, catalog.ID)
	if err != nil {
		h.writeError(w, "Failed to list pages: "+err.Error(), http.StatusInternalServerError)
		return
	}

	detail := CatalogDetail{Catalog: catalog, Pages: make([]PageDetail, 0, len(pages))}
	for _, page := range pages {
		products, err := h.store.ListProductsByPage(ctx, page.ID)
		if err != nil {
			h.writeError(w, "Failed to list products: "+err.Error(), http.StatusInternalServerError)
			return
		}
		hotspots, err := h.store.ListHotspotsByPage(ctx, page.ID)
		if err != nil {
			h.writeError(w, "Failed to list hotspots: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if products == nil {
			products = []models.Product{}
		}
		if hotspots == nil {
			hotspots = []models.Hotspot{}
		}
		detail.Pages = append(detail.Pages, PageDetail{Page: page, Products: products, Hotspots: hotspots})
	}
	h.writeJSON(w, detail)
}

// handleProcess queues a pipeline run. It waits while the queue is full
// and gives up when the client goes away.
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request, catalog *models.Catalog) {
	id := catalog.ID
	item := queue.WorkItem{
		Name: "catalog " + id.String(),
		Run: func(ctx context.Context) error {
			summary, err := h.processor.ProcessCatalog(ctx, id)
			if err != nil {
				return err
			}
			if summary.MatchErr != nil {
				return fmt.Errorf("catalog processed but hotspot matching failed: %w", summary.MatchErr)
			}
			return nil
		},
	}

	if err := h.queue.Enqueue(r.Context(), item); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			h.writeError(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		h.writeError(w, "Failed to queue catalog: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"catalog_id": id,
		"message":    "Catalog queued for processing",
		"pending":    h.queue.Len(),
	})
}
