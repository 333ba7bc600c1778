package handlers

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

type pageUpload struct {
	filename string
	data     []byte
}

// savePageImage validates the upload as an image and stores it under the
// catalog's upload directory, named by content hash.
// It returns the image url relative to the web root.
func (h *Handler) savePageImage(catalogID uuid.UUID, u pageUpload) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(u.data))
	if err != nil {
		return "", fmt.Errorf("%s is not a supported image: %w", u.filename, err)
	}

	dir, err := h.ensureUploadsDir(catalogID)
	if err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	sum := md5.Sum(u.data)
	imageFilename := hex.EncodeToString(sum[:]) + "." + format
	if err := os.WriteFile(filepath.Join(dir, imageFilename), u.data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	slog.Info("Page image saved", "catalog_id", catalogID, "filename", imageFilename, "source", u.filename, "width", cfg.Width, "height", cfg.Height)

	return path.Join("/uploads", catalogID.String(), imageFilename), nil
}

func (h *Handler) downloadImageFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

func fileNameFromURL(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
	}
	parts := strings.Split(imageURL, "/")
	if name := parts[len(parts)-1]; name != "" {
		return name
	}
	return "image.jpg"
}
