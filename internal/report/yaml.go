package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/katalogcu/partalog/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// RunInfo represents the header section of a run report
type RunInfo struct {
	CatalogID      string  `yaml:"catalogid"`
	CatalogName    string  `yaml:"catalogname"`
	StartedAt      string  `yaml:"startedat"`
	FinishedAt     string  `yaml:"finishedat"`
	DurationSecs   float64 `yaml:"durationseconds"`
	Cancelled      bool    `yaml:"cancelled,omitempty"`
	HotspotsLinked int     `yaml:"hotspotslinked"`
	MatchError     string  `yaml:"matcherror,omitempty"`
}

// PageResult represents a single page row in the report
type PageResult struct {
	PageNumber      int    `yaml:"pagenumber"`
	Outcome         string `yaml:"outcome"`
	Title           string `yaml:"title,omitempty"`
	OwnerPageNumber int    `yaml:"ownerpage,omitempty"`
	Products        int    `yaml:"products,omitempty"`
	Hotspots        int    `yaml:"hotspots,omitempty"`
	Error           string `yaml:"error,omitempty"`
}

// RunReport is the complete report written after a catalog run
type RunReport struct {
	Run      RunInfo        `yaml:"run"`
	Outcomes map[string]int `yaml:"outcomes"`
	Products int            `yaml:"productscreated"`
	Hotspots int            `yaml:"hotspotscreated"`
	Pages    []PageResult   `yaml:"pages"`
}

// Build converts a run summary into its report form
func Build(s *pipeline.RunSummary) RunReport {
	r := RunReport{
		Run: RunInfo{
			CatalogID:      s.CatalogID.String(),
			CatalogName:    s.CatalogName,
			StartedAt:      s.StartedAt.Format(time.RFC3339),
			FinishedAt:     s.FinishedAt.Format(time.RFC3339),
			DurationSecs:   s.Duration().Seconds(),
			Cancelled:      s.Cancelled,
			HotspotsLinked: s.HotspotsLinked,
		},
		Outcomes: make(map[string]int),
		Products: s.ProductsCreated(),
		Hotspots: s.HotspotsCreated(),
		Pages:    make([]PageResult, 0, len(s.Pages)),
	}
	if s.MatchErr != nil {
		r.Run.MatchError = s.MatchErr.Error()
	}

	for _, p := range s.Pages {
		r.Outcomes[string(p.Outcome)]++
		row := PageResult{
			PageNumber:      p.PageNumber,
			Outcome:         string(p.Outcome),
			Title:           p.Title,
			OwnerPageNumber: p.OwnerPageNumber,
			Products:        p.Products,
			Hotspots:        p.Hotspots,
		}
		if p.Err != nil {
			row.Error = p.Err.Error()
		}
		r.Pages = append(r.Pages, row)
	}
	return r
}

// SaveToYAML writes the report for s to path, creating parent directories
func SaveToYAML(path string, s *pipeline.RunSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	report := Build(s)
	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
