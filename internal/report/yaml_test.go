package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() *pipeline.RunSummary {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &pipeline.RunSummary{
		CatalogID:      uuid.MustParse("6f1c7c1e-9a43-4d8e-9a53-1b2b2a4f0c11"),
		CatalogName:    "DDL-8700 (Parts List)",
		StartedAt:      start,
		FinishedAt:     start.Add(90 * time.Second),
		HotspotsLinked: 2,
		Pages: []pipeline.PageOutcome{
			{PageNumber: 1, Outcome: pipeline.OutcomeIrrelevant, Title: "Cover"},
			{PageNumber: 2, Outcome: pipeline.OutcomeDrawing, Title: "Gearbox", Hotspots: 3},
			{PageNumber: 3, Outcome: pipeline.OutcomeTableAttached, OwnerPageNumber: 2, Products: 2},
			{PageNumber: 4, Outcome: pipeline.OutcomeFailed, Err: errors.New("classifier timeout")},
		},
	}
}

func TestBuild(t *testing.T) {
	r := Build(sampleSummary())

	assert.Equal(t, "6f1c7c1e-9a43-4d8e-9a53-1b2b2a4f0c11", r.Run.CatalogID)
	assert.Equal(t, 90.0, r.Run.DurationSecs)
	assert.Equal(t, 2, r.Products)
	assert.Equal(t, 3, r.Hotspots)
	assert.Equal(t, map[string]int{"irrelevant": 1, "drawing": 1, "table_attached": 1, "failed": 1}, r.Outcomes)
	require.Len(t, r.Pages, 4)
	assert.Equal(t, 2, r.Pages[2].OwnerPageNumber)
	assert.Equal(t, "classifier timeout", r.Pages[3].Error)
}

func TestSaveToYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.yaml")
	require.NoError(t, SaveToYAML(path, sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "catalogname: DDL-8700 (Parts List)")

	var decoded RunReport
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "2026-05-04T10:00:00Z", decoded.Run.StartedAt)
	assert.Equal(t, 2, decoded.Run.HotspotsLinked)
}
