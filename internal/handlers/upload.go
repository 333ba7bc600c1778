package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/katalogcu/partalog/internal/models"
)

// HandlePageUpload appends page images to a catalog. It accepts multipart
// "files" (or a single "file") in page order, or JSON {"image_urls": [...]}.
func (h *Handler) HandlePageUpload(w http.ResponseWriter, r *http.Request, catalog *models.Catalog) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLUpload(w, r, catalog)
		return
	}

	h.handleFileUpload(w, r, catalog)
}

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request, catalog *models.Catalog) {
	var request struct {
		ImageURLs []string `json:"image_urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(request.ImageURLs) == 0 {
		h.writeError(w, "image_urls is required", http.StatusBadRequest)
		return
	}

	uploads := make([]pageUpload, 0, len(request.ImageURLs))
	for _, u := range request.ImageURLs {
		data, err := h.downloadImageFromURL(r.Context(), u)
		if err != nil {
			h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
			return
		}
		uploads = append(uploads, pageUpload{filename: fileNameFromURL(u), data: data})
	}

	h.savePages(w, r, catalog, uploads)
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request, catalog *models.Catalog) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to read form: "+err.Error(), http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.writeError(w, "Failed to read file: no files in form", http.StatusBadRequest)
		return
	}

	uploads := make([]pageUpload, 0, len(headers))
	for _, header := range headers {
		data, err := readUpload(header)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		uploads = append(uploads, pageUpload{filename: header.Filename, data: data})
	}

	h.savePages(w, r, catalog, uploads)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) >= maxUploadSize {
		return nil, fmt.Errorf("file %s too large (max %dMB)", header.Filename, maxUploadSize/1024/1024)
	}
	return data, nil
}

func (h *Handler) savePages(w http.ResponseWriter, r *http.Request, catalog *models.Catalog, uploads []pageUpload) {
	ctx := r.Context()
	existing, err := h.store.ListPages(ctx, catalog.ID)
	if err != nil {
		h.writeError(w, "Failed to list pages: "+err.Error(), http.StatusInternalServerError)
		return
	}
	next := 1
	if len(existing) > 0 {
		next = existing[len(existing)-1].PageNumber + 1
	}

	pages := make([]models.Page, 0, len(uploads))
	for i, u := range uploads {
		imageURL, err := h.savePageImage(catalog.ID, u)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		pages = append(pages, models.Page{
			CatalogID:  catalog.ID,
			PageNumber: next + i,
			ImageURL:   imageURL,
		})
	}

	if err := h.store.AddPages(ctx, pages); err != nil {
		h.writeError(w, "Failed to save pages: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSONStatus(w, http.StatusCreated, map[string]any{
		"catalog_id": catalog.ID,
		"message":    fmt.Sprintf("Successfully uploaded %d page(s)", len(pages)),
		"pages":      pages,
	})
}
