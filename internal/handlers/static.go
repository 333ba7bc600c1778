package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleUploads serves page images stored under the web root
func (h *Handler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" && r.Method != "HEAD" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/")

	// Prevent directory traversal attacks
	if strings.Contains(rel, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.webRoot, filepath.FromSlash(rel)))
}
