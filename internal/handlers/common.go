package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/pipeline"
	"github.com/katalogcu/partalog/internal/queue"
	"github.com/katalogcu/partalog/internal/storage"
)

// maxUploadSize limits a single page image
const maxUploadSize = 20 * 1024 * 1024

type Handler struct {
	store     storage.Store
	processor *pipeline.Processor
	queue     *queue.Queue
	webRoot   string
}

func New(store storage.Store, processor *pipeline.Processor, q *queue.Queue, webRoot string) *Handler {
	return &Handler{
		store:     store,
		processor: processor,
		queue:     q,
		webRoot:   webRoot,
	}
}

// Routes registers every endpoint on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/catalogs", h.HandleCatalogs)
	mux.HandleFunc("/api/catalogs/", h.HandleCatalogDetail)
	mux.HandleFunc("/uploads/", h.HandleUploads)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "code", code)
	}
	http.Error(w, message, code)
}

// Catalog helpers
func (h *Handler) getCatalogOrError(w http.ResponseWriter, r *http.Request, rawID string) (*models.Catalog, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		h.writeError(w, "Invalid catalog id", http.StatusBadRequest)
		return nil, false
	}
	catalog, err := h.store.GetCatalog(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Catalog not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.writeError(w, "Failed to load catalog: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return catalog, true
}

// File operation helpers
func (h *Handler) ensureUploadsDir(catalogID uuid.UUID) (string, error) {
	dir := filepath.Join(h.webRoot, "uploads", catalogID.String())
	return dir, os.MkdirAll(dir, 0755)
}
