package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Catalog statuses
const (
	StatusProcessing = "Processing"
	StatusDraft      = "Draft"
	StatusPublished  = "Published"
	StatusError      = "Error"
)

// DefaultMachineGroup is used when cover analysis does not name a group
const DefaultMachineGroup = "General"

// Catalog represents one uploaded parts catalog
type Catalog struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	PdfURL       string    `json:"pdf_url,omitempty"`
	Status       string    `json:"status"`
	MachineBrand string    `json:"machine_brand,omitempty"`
	MachineModel string    `json:"machine_model,omitempty"`
	MachineGroup string    `json:"machine_group,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Page is one rasterized page of a catalog
type Page struct {
	ID            uuid.UUID `json:"id"`
	CatalogID     uuid.UUID `json:"catalog_id"`
	PageNumber    int       `json:"page_number"` // 1-based, contiguous within a catalog
	ImageURL      string    `json:"image_url"`
	AiDescription string    `json:"ai_description,omitempty"`
}

// Product is one extracted parts-table row.
// PageID points at the drawing page the row was attached to, PageNumber at the page it was read from.
type Product struct {
	ID         uuid.UUID `json:"id"`
	CatalogID  uuid.UUID `json:"catalog_id"`
	PageID     uuid.UUID `json:"page_id"`
	RefNo      int       `json:"ref_no"` // 0 means no ref
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	PageNumber string    `json:"page_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// Hotspot is a coordinate marker on a drawing page, in percent of the page size
type Hotspot struct {
	ID           uuid.UUID  `json:"id"`
	PageID       uuid.UUID  `json:"page_id"`
	Left         float64    `json:"left"`
	Top          float64    `json:"top"`
	Width        float64    `json:"width"`
	Height       float64    `json:"height"`
	Label        string     `json:"label,omitempty"`
	IsAiDetected bool       `json:"is_ai_detected"`
	AiConfidence float64    `json:"ai_confidence"`
	ProductID    *uuid.UUID `json:"product_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PageAnalysis is the page classifier's verdict for one page image
type PageAnalysis struct {
	IsTechnicalDrawing bool   `json:"is_technical_drawing"`
	IsPartsList        bool   `json:"is_parts_list"`
	Title              string `json:"title"`
}

// Detection is one bounding box returned by the hotspot detector
type Detection struct {
	Left       float64 `json:"left_percent"`
	Top        float64 `json:"top_percent"`
	Width      float64 `json:"width_percent"`
	Height     float64 `json:"height_percent"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// CleanDetections trims labels, drops boxes without area and clamps
// coordinates to 0-100 and confidence to 0-1.
func CleanDetections(detections []Detection) []Detection {
	cleaned := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Width <= 0 || d.Height <= 0 {
			continue
		}
		d.Label = strings.TrimSpace(d.Label)
		d.Left = clampPercent(d.Left)
		d.Top = clampPercent(d.Top)
		d.Width = clampPercent(d.Width)
		d.Height = clampPercent(d.Height)
		d.Confidence = math.Min(math.Max(d.Confidence, 0), 1)
		cleaned = append(cleaned, d)
	}
	return cleaned
}

func clampPercent(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}

// TableRow is one row read from a parts table
type TableRow struct {
	RefNumber int    `json:"ref_number"`
	PartCode  string `json:"part_code"`
	PartName  string `json:"part_name"`
}

// UnmarshalJSON accepts ref_number as a number or a numeric string.
// Anything else becomes 0, which never matches a hotspot.
func (r *TableRow) UnmarshalJSON(data []byte) error {
	var raw struct {
		RefNumber json.RawMessage `json:"ref_number"`
		PartCode  string          `json:"part_code"`
		PartName  string          `json:"part_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.PartCode = strings.TrimSpace(raw.PartCode)
	r.PartName = strings.TrimSpace(raw.PartName)
	r.RefNumber = parseRef(raw.RefNumber)
	return nil
}

func parseRef(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
			return 0
		}
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n2, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n2 < 0 {
		return 0
	}
	return n2
}

// CoverMetadata describes the machine a catalog covers, read from its first page
type CoverMetadata struct {
	MachineModel string `json:"machine_model"`
	MachineBrand string `json:"machine_brand"`
	MachineGroup string `json:"machine_group"`
	CatalogTitle string `json:"catalog_title"`
}
