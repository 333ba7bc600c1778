// Package aiclient talks to the catalog AI service over multipart HTTP.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 5 * time.Minute

// Client calls the AI service. It implements the page classifier, hotspot
// detector, table extractor and cover analyzer.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// New creates a client for the service at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetRateLimit caps outgoing requests per second. Zero or less removes the cap.
func (c *Client) SetRateLimit(requestsPerSecond int) {
	if requestsPerSecond <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
}

func (c *Client) Analyze(ctx context.Context, image []byte) (models.PageAnalysis, error) {
	var analysis models.PageAnalysis
	if err := c.postImage(ctx, "/api/analysis/analyze-page-title", image, &analysis); err != nil {
		return models.PageAnalysis{}, err
	}
	analysis.Title = strings.TrimSpace(analysis.Title)
	return analysis, nil
}

func (c *Client) Detect(ctx context.Context, image []byte) ([]models.Detection, error) {
	var result struct {
		Success  bool               `json:"success"`
		Hotspots []models.Detection `json:"hotspots"`
	}
	if err := c.postImage(ctx, "/api/hotspot/detect", image, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		slog.Warn("Hotspot service reported no success")
		return nil, nil
	}
	return models.CleanDetections(result.Hotspots), nil
}

func (c *Client) Extract(ctx context.Context, image []byte, pageNumber int) ([]models.TableRow, error) {
	var result struct {
		Success bool `json:"success"`
		Tables  []struct {
			Products []models.TableRow `json:"products"`
		} `json:"tables"`
	}
	path := "/api/table/extract?page_number=" + strconv.Itoa(pageNumber)
	if err := c.postImage(ctx, path, image, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		slog.Warn("Table service reported no success", "page", pageNumber)
		return nil, nil
	}

	var rows []models.TableRow
	for _, table := range result.Tables {
		rows = append(rows, table.Products...)
	}
	return rows, nil
}

func (c *Client) AnalyzeCover(ctx context.Context, image []byte) (models.CoverMetadata, error) {
	var meta models.CoverMetadata
	if err := c.postImage(ctx, "/api/table/extract-metadata", image, &meta); err != nil {
		return models.CoverMetadata{}, err
	}
	return meta, nil
}

// TriggerTraining asks the service to retrain its detector on the latest data
func (c *Client) TriggerTraining(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/admin/train", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	_, err = c.do(req)
	return err
}

// VisualIngest uploads the catalog PDF so the service can index its pages
func (c *Client) VisualIngest(ctx context.Context, catalogID uuid.UUID, pdfPath string) error {
	f, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("catalog_id", catalogID.String()); err != nil {
		return fmt.Errorf("failed to write form field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy pdf: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/visual-ingest", body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	_, err = c.do(req)
	return err
}

// postImage uploads image as the multipart "file" field and decodes the JSON answer into out
func (c *Client) postImage(ctx context.Context, path string, image []byte, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	contentType := http.DetectContentType(image)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName(contentType)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint(path), err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", endpoint(req.URL.Path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint(req.URL.Path), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d: %s", endpoint(req.URL.Path), resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func endpoint(path string) string {
	if u, err := url.Parse(path); err == nil {
		return u.Path
	}
	return path
}

func fileName(contentType string) string {
	switch contentType {
	case "image/png":
		return "page.png"
	case "image/webp":
		return "page.webp"
	default:
		return "page.jpg"
	}
}
