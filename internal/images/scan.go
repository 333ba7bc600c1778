package images

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"
)

// PageImage is an image file found by ScanDir
type PageImage struct {
	Path   string
	Width  int
	Height int
	Format string
}

// ScanDir returns the decodable images in dir sorted by file name.
// Files that are not images are skipped.
func ScanDir(dir string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var result []PageImage
	for _, name := range names {
		path := filepath.Join(dir, name)
		img, err := inspect(path)
		if err != nil {
			slog.Debug("Skipping non-image file", "path", path, "err", err)
			continue
		}
		result = append(result, img)
	}
	return result, nil
}

func inspect(path string) (PageImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return PageImage{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return PageImage{}, err
	}
	return PageImage{Path: path, Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
