package images

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestResolverPath(t *testing.T) {
	r := NewResolver("/srv/www")

	tests := []struct {
		url      string
		expected string
	}{
		{"/uploads/p1.jpg", "/srv/www/uploads/p1.jpg"},
		{"uploads/p1.jpg", "/srv/www/uploads/p1.jpg"},
		{"//uploads/p1.jpg", "/srv/www/uploads/p1.jpg"},
		{"/uploads/page%201.jpg", "/srv/www/uploads/page 1.jpg"},
		{"http://localhost:5000/uploads/p1.jpg", "/srv/www/uploads/p1.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := r.Path(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := r.Path("/../../etc/passwd")
	assert.Error(t, err)

	_, err = r.Path("uploads/../../etc/passwd")
	assert.Error(t, err)

	_, err = r.Path("  ")
	assert.Error(t, err)
}

func TestResolverLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "uploads", "p1.jpg"), []byte("jpeg"), 0644))

	r := NewResolver(root)
	data, err := r.Load(context.Background(), models.Page{PageNumber: 1, ImageURL: "/uploads/p1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	_, err = r.Load(context.Background(), models.Page{PageNumber: 2, ImageURL: "/uploads/p2.jpg"})
	assert.ErrorIs(t, err, pipeline.ErrImageNotFound)

	_, err = r.Load(context.Background(), models.Page{PageNumber: 3, ImageURL: ""})
	assert.ErrorIs(t, err, pipeline.ErrImageNotFound)
}

func TestResolverDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/remote/p1.jpg" {
			_, _ = w.Write([]byte("remote-bytes"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	r := NewResolver(t.TempDir()).WithDownloads(5 * time.Second)

	data, err := r.Load(context.Background(), models.Page{ImageURL: server.URL + "/remote/p1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-bytes"), data)

	_, err = r.Load(context.Background(), models.Page{ImageURL: server.URL + "/remote/missing.jpg"})
	assert.ErrorIs(t, err, pipeline.ErrImageNotFound)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "page-02.png"), 20, 10)
	writePNG(t, filepath.Join(dir, "page-01.png"), 30, 40)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	found, err := ScanDir(dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "page-01.png", filepath.Base(found[0].Path))
	assert.Equal(t, 30, found[0].Width)
	assert.Equal(t, 40, found[0].Height)
	assert.Equal(t, "png", found[0].Format)
	assert.Equal(t, "page-02.png", filepath.Base(found[1].Path))
}

func TestScanDirMissing(t *testing.T) {
	_, err := ScanDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
