package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestLabelMatches(t *testing.T) {
	tests := []struct {
		label    string
		refNo    int
		expected bool
	}{
		{"7", 7, true},
		{"007", 7, true},
		{"70", 7, false},
		{"7a", 7, false},
		{"12", 12, true},
		{"0", 0, false},
		{"000", 0, false},
		{"", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, labelMatches(tt.label, tt.refNo))
		})
	}
}

func TestMatchHotspots(t *testing.T) {
	drawing := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seven := models.Product{ID: uuid.New(), PageID: drawing, RefNo: 7, CreatedAt: base}
	twelve := models.Product{ID: uuid.New(), PageID: drawing, RefNo: 12, CreatedAt: base}
	otherPage := models.Product{ID: uuid.New(), PageID: other, RefNo: 3, CreatedAt: base}
	products := []models.Product{seven, twelve, otherPage}

	already := uuid.New()
	hotspots := []models.Hotspot{
		{ID: uuid.New(), PageID: drawing, Label: "007"},
		{ID: uuid.New(), PageID: drawing, Label: "12"},
		{ID: uuid.New(), PageID: drawing, Label: ""},
		{ID: uuid.New(), PageID: drawing, Label: "99"},
		{ID: uuid.New(), PageID: drawing, Label: "3"}, // ref 3 lives on another page
		{ID: uuid.New(), PageID: drawing, Label: "7", ProductID: &already},
	}

	links := MatchHotspots(products, hotspots)

	assert.Len(t, links, 2)
	assert.Equal(t, seven.ID, links[hotspots[0].ID])
	assert.Equal(t, twelve.ID, links[hotspots[1].ID])
	assert.NotContains(t, links, hotspots[2].ID)
	assert.NotContains(t, links, hotspots[3].ID)
	assert.NotContains(t, links, hotspots[4].ID)
	assert.NotContains(t, links, hotspots[5].ID)
}

func TestMatchHotspotsPrefersEarliestProduct(t *testing.T) {
	drawing := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	later := models.Product{ID: uuid.New(), PageID: drawing, RefNo: 5, CreatedAt: base.Add(time.Minute)}
	earlier := models.Product{ID: uuid.New(), PageID: drawing, RefNo: 5, CreatedAt: base}
	sameTimeSecond := models.Product{ID: uuid.New(), PageID: drawing, RefNo: 6, CreatedAt: base}
	sameTimeFirst := models.Product{ID: uuid.New(), PageID: drawing, RefNo: 6, CreatedAt: base}

	hotspots := []models.Hotspot{
		{ID: uuid.New(), PageID: drawing, Label: "5"},
		{ID: uuid.New(), PageID: drawing, Label: "6"},
	}

	links := MatchHotspots([]models.Product{later, earlier, sameTimeFirst, sameTimeSecond}, hotspots)

	assert.Equal(t, earlier.ID, links[hotspots[0].ID])
	assert.Equal(t, sameTimeFirst.ID, links[hotspots[1].ID], "equal creation times keep load order")
}

func TestMatchHotspotsIsIdempotent(t *testing.T) {
	drawing := uuid.New()
	products := []models.Product{{ID: uuid.New(), PageID: drawing, RefNo: 1}}
	hotspots := []models.Hotspot{{ID: uuid.New(), PageID: drawing, Label: "01"}}

	first := MatchHotspots(products, hotspots)
	second := MatchHotspots(products, hotspots)
	assert.Equal(t, first, second)
}
