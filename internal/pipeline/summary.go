package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is what happened to one page
type Outcome string

const (
	OutcomeDrawing        Outcome = "drawing"
	OutcomeTableAttached  Outcome = "table_attached"
	OutcomeTableDiscarded Outcome = "table_discarded"
	OutcomeIrrelevant     Outcome = "irrelevant"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeFailed         Outcome = "failed"
)

// PageOutcome records the result of processing one page
type PageOutcome struct {
	PageID          uuid.UUID
	PageNumber      int
	Outcome         Outcome
	Title           string
	OwnerPageNumber int
	Gap             int
	Products        int
	Hotspots        int
	PurgedProducts  int
	PurgedHotspots  int
	Err             error
}

// RunSummary describes a finished (or cancelled) catalog run
type RunSummary struct {
	CatalogID      uuid.UUID
	CatalogName    string
	StartedAt      time.Time
	FinishedAt     time.Time
	Pages          []PageOutcome
	HotspotsLinked int
	MatchErr       error
	Cancelled      bool
}

// Count returns how many pages ended with the given outcome
func (s *RunSummary) Count(o Outcome) int {
	n := 0
	for _, p := range s.Pages {
		if p.Outcome == o {
			n++
		}
	}
	return n
}

// ProductsCreated is the number of products written during the run
func (s *RunSummary) ProductsCreated() int {
	n := 0
	for _, p := range s.Pages {
		n += p.Products
	}
	return n
}

// HotspotsCreated is the number of hotspots written during the run
func (s *RunSummary) HotspotsCreated() int {
	n := 0
	for _, p := range s.Pages {
		n += p.Hotspots
	}
	return n
}

func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
