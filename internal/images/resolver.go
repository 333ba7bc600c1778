package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/pipeline"
)

// Resolver loads page images stored under a web root. Image urls may be
// relative paths ("/uploads/p1.jpg") or absolute urls whose path points
// under the web root.
type Resolver struct {
	WebRoot string
	// HTTPClient, when set, is used to download absolute urls that are not on disk
	HTTPClient *http.Client
}

// NewResolver creates a resolver for files under webRoot
func NewResolver(webRoot string) *Resolver {
	return &Resolver{WebRoot: webRoot}
}

// WithDownloads enables fetching remote images that are not on disk
func (r *Resolver) WithDownloads(timeout time.Duration) *Resolver {
	r.HTTPClient = &http.Client{
		Timeout: timeout,
	}
	return r
}

// Path maps an image url to a file path under the web root
func (r *Resolver) Path(imageURL string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", fmt.Errorf("empty image url")
	}

	decoded, err := url.PathUnescape(imageURL)
	if err != nil {
		decoded = imageURL
	}

	p := decoded
	if u, err := url.Parse(decoded); err == nil && u.IsAbs() {
		p = u.Path
	}
	p = strings.TrimLeft(filepath.ToSlash(p), "/")

	full := filepath.Join(r.WebRoot, filepath.FromSlash(p))
	root := filepath.Clean(r.WebRoot)
	if rel, err := filepath.Rel(root, full); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("image url %q escapes the web root", imageURL)
	}
	return full, nil
}

// Load implements pipeline.ImageSource
func (r *Resolver) Load(ctx context.Context, page models.Page) ([]byte, error) {
	path, err := r.Path(page.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrImageNotFound, err)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if r.HTTPClient != nil && isRemote(page.ImageURL) {
		slog.Debug("Image not on disk, downloading", "page", page.PageNumber, "url", page.ImageURL)
		return r.download(ctx, page.ImageURL)
	}
	return nil, fmt.Errorf("%w: %s", pipeline.ErrImageNotFound, path)
}

func (r *Resolver) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrImageNotFound, imageURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", pipeline.ErrImageNotFound, imageURL)
	}
	return data, nil
}

func isRemote(imageURL string) bool {
	u, err := url.Parse(imageURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}
