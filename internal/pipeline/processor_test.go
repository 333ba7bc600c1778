package pipeline

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAI serves every collaborator from per-page-number tables. The image of
// page N is the decimal string N.
type fakeAI struct {
	missing     map[int]bool
	analyses    map[int]models.PageAnalysis
	classifyErr map[int]error
	detections  map[int][]models.Detection
	detectErr   map[int]error
	rows        map[int][]models.TableRow
	extractErr  map[int]error
	panics      map[int]bool
	cover       *models.CoverMetadata

	classified []int
	extracted  []int
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		missing:     map[int]bool{},
		analyses:    map[int]models.PageAnalysis{},
		classifyErr: map[int]error{},
		detections:  map[int][]models.Detection{},
		detectErr:   map[int]error{},
		rows:        map[int][]models.TableRow{},
		extractErr:  map[int]error{},
		panics:      map[int]bool{},
	}
}

func (f *fakeAI) drawing(n int, title string, labels ...string) {
	f.analyses[n] = models.PageAnalysis{IsTechnicalDrawing: true, Title: title}
	var dets []models.Detection
	for _, l := range labels {
		dets = append(dets, models.Detection{Left: 10, Top: 10, Width: 5, Height: 5, Label: l, Confidence: 0.9})
	}
	f.detections[n] = dets
}

func (f *fakeAI) table(n int, rows ...models.TableRow) {
	f.analyses[n] = models.PageAnalysis{IsPartsList: true, Title: "Parts"}
	f.rows[n] = rows
}

func (f *fakeAI) irrelevant(n int) {
	f.analyses[n] = models.PageAnalysis{Title: "Index"}
}

func pageOf(image []byte) int {
	n, _ := strconv.Atoi(string(image))
	return n
}

func (f *fakeAI) Load(ctx context.Context, page models.Page) ([]byte, error) {
	if f.missing[page.PageNumber] {
		return nil, ErrImageNotFound
	}
	return []byte(strconv.Itoa(page.PageNumber)), nil
}

func (f *fakeAI) Analyze(ctx context.Context, image []byte) (models.PageAnalysis, error) {
	n := pageOf(image)
	f.classified = append(f.classified, n)
	if f.panics[n] {
		panic("classifier crashed")
	}
	if err := f.classifyErr[n]; err != nil {
		return models.PageAnalysis{}, err
	}
	return f.analyses[n], nil
}

func (f *fakeAI) Detect(ctx context.Context, image []byte) ([]models.Detection, error) {
	n := pageOf(image)
	if err := f.detectErr[n]; err != nil {
		return nil, err
	}
	return f.detections[n], nil
}

func (f *fakeAI) Extract(ctx context.Context, image []byte, pageNumber int) ([]models.TableRow, error) {
	f.extracted = append(f.extracted, pageNumber)
	if err := f.extractErr[pageNumber]; err != nil {
		return nil, err
	}
	return f.rows[pageNumber], nil
}

func (f *fakeAI) AnalyzeCover(ctx context.Context, image []byte) (models.CoverMetadata, error) {
	if f.cover == nil {
		return models.CoverMetadata{}, errors.New("cover service down")
	}
	return *f.cover, nil
}

type fixture struct {
	store   *storage.MemoryStore
	ai      *fakeAI
	catalog *models.Catalog
	pages   map[int]models.Page
	events  []Event
	proc    *Processor
}

func newFixture(t *testing.T, numbers ...int) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: storage.NewMemoryStore(),
		ai:    newFakeAI(),
		pages: map[int]models.Page{},
	}

	f.catalog = &models.Catalog{Name: "Test catalog", Status: models.StatusDraft}
	require.NoError(t, f.store.CreateCatalog(ctx, f.catalog))

	var pages []models.Page
	for _, n := range numbers {
		pages = append(pages, models.Page{CatalogID: f.catalog.ID, PageNumber: n, ImageURL: "/uploads/p" + strconv.Itoa(n) + ".jpg"})
	}
	require.NoError(t, f.store.AddPages(ctx, pages))
	for _, p := range pages {
		f.pages[p.PageNumber] = p
	}

	collab := Collaborators{Images: f.ai, Classifier: f.ai, Detector: f.ai, Extractor: f.ai}
	f.proc = New(f.store, collab, ObserverFunc(func(e Event) { f.events = append(f.events, e) }))
	return f
}

func (f *fixture) run(t *testing.T) *RunSummary {
	t.Helper()
	summary, err := f.proc.ProcessCatalog(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	return summary
}

func (f *fixture) productCodes(t *testing.T, pageNumber int) []string {
	t.Helper()
	products, err := f.store.ListProductsByPage(context.Background(), f.pages[pageNumber].ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(products))
	for _, p := range products {
		codes = append(codes, p.Code)
	}
	sort.Strings(codes)
	return codes
}

func (f *fixture) hotspots(t *testing.T, pageNumber int) []models.Hotspot {
	t.Helper()
	hotspots, err := f.store.ListHotspotsByPage(context.Background(), f.pages[pageNumber].ID)
	require.NoError(t, err)
	return hotspots
}

func (f *fixture) page(t *testing.T, pageNumber int) models.Page {
	t.Helper()
	pages, err := f.store.ListPages(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	for _, p := range pages {
		if p.PageNumber == pageNumber {
			return p
		}
	}
	t.Fatalf("page %d not found", pageNumber)
	return models.Page{}
}

func outcomes(s *RunSummary) map[int]Outcome {
	m := make(map[int]Outcome, len(s.Pages))
	for _, p := range s.Pages {
		m[p.PageNumber] = p.Outcome
	}
	return m
}

func TestProcessCatalogGearboxScenario(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4, 7)
	f.ai.irrelevant(1)
	f.ai.drawing(2, "Gearbox", "1", "02", "3")
	f.ai.table(3, models.TableRow{RefNumber: 1, PartCode: "A1"}, models.TableRow{RefNumber: 2, PartCode: "A2"})
	f.ai.table(4, models.TableRow{RefNumber: 3, PartCode: "A3"})
	f.ai.table(7, models.TableRow{RefNumber: 9, PartCode: "X"})

	summary := f.run(t)

	assert.Equal(t, []string{"A1", "A2", "A3"}, f.productCodes(t, 2))
	assert.Empty(t, f.productCodes(t, 3))
	assert.Empty(t, f.productCodes(t, 4))
	assert.Empty(t, f.productCodes(t, 7))
	assert.NotContains(t, f.ai.extracted, 7, "discarded tables are not extracted")

	products, err := f.store.ListProducts(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	assert.Len(t, products, 3)
	for _, p := range products {
		assert.Equal(t, f.pages[2].ID, p.PageID)
		assert.Contains(t, []string{"3", "4"}, p.PageNumber)
	}

	assert.Equal(t, map[int]Outcome{
		1: OutcomeIrrelevant,
		2: OutcomeDrawing,
		3: OutcomeTableAttached,
		4: OutcomeTableAttached,
		7: OutcomeTableDiscarded,
	}, outcomes(summary))
	assert.Equal(t, 3, summary.ProductsCreated())
	assert.Equal(t, 3, summary.HotspotsCreated())

	// all three labels match, "02" by stripping the leading zero
	assert.Equal(t, 3, summary.HotspotsLinked)
	for _, h := range f.hotspots(t, 2) {
		assert.NotNil(t, h.ProductID, "hotspot %q should be linked", h.Label)
	}

	assert.Equal(t, "Gearbox", f.page(t, 2).AiDescription)
	assert.Equal(t, "Index", f.page(t, 1).AiDescription)

	catalog, err := f.store.GetCatalog(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, catalog.Status)
}

func TestIrrelevantPageBreaksChain(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "Frame")
	f.ai.irrelevant(2)
	f.ai.table(3, models.TableRow{RefNumber: 1, PartCode: "F1"})

	summary := f.run(t)

	assert.Empty(t, f.productCodes(t, 1))
	assert.Equal(t, OutcomeTableDiscarded, outcomes(summary)[3])
}

func TestTableBeforeAnyDrawingIsDiscarded(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.ai.table(1, models.TableRow{RefNumber: 1, PartCode: "T1"})
	f.ai.drawing(2, "Late drawing")

	summary := f.run(t)

	assert.Equal(t, OutcomeTableDiscarded, outcomes(summary)[1])
	products, err := f.store.ListProducts(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDiscardedTableResetsCursorForLaterTables(t *testing.T) {
	drawing := models.Page{ID: uuid.New(), PageNumber: 3}
	repeated := models.Page{ID: uuid.New(), PageNumber: 3}
	next := models.Page{ID: uuid.New(), PageNumber: 4}

	cursor := Decide(NoActiveDrawing(), drawing, KindDrawing).Next
	d := Decide(cursor, repeated, KindPartsList)
	assert.Equal(t, ActionDiscardTable, d.Action)

	// page 4 would be in range of the drawing, but the cursor is gone
	d = Decide(d.Next, next, KindPartsList)
	assert.Equal(t, ActionDiscardTable, d.Action)
}

func TestDrawingReprocessPurgesStaleData(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.ai.drawing(1, "Pump", "1", "2")
	f.ai.table(2, models.TableRow{RefNumber: 1, PartCode: "P1"}, models.TableRow{RefNumber: 2, PartCode: "P2"})
	f.run(t)

	require.Len(t, f.hotspots(t, 1), 2)
	require.Equal(t, []string{"P1", "P2"}, f.productCodes(t, 1))

	// second run: detector returns nothing and the table only has one row
	f.ai.drawing(1, "Pump")
	f.ai.table(2, models.TableRow{RefNumber: 1, PartCode: "P1"})
	summary := f.run(t)

	assert.Empty(t, f.hotspots(t, 1), "stale hotspots must not survive")
	assert.Equal(t, []string{"P1"}, f.productCodes(t, 1))

	drawing := summary.Pages[0]
	assert.Equal(t, 2, drawing.PurgedProducts)
	assert.Equal(t, 2, drawing.PurgedHotspots)
}

func TestRerunIsIdempotent(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "Gearbox", "1", "2")
	f.ai.table(2, models.TableRow{RefNumber: 1, PartCode: "G1"})
	f.ai.table(3, models.TableRow{RefNumber: 2, PartCode: "G2"})

	f.run(t)
	firstCodes := f.productCodes(t, 1)
	firstHotspots := len(f.hotspots(t, 1))

	f.run(t)
	assert.Equal(t, firstCodes, f.productCodes(t, 1))
	assert.Len(t, f.hotspots(t, 1), firstHotspots)

	for _, h := range f.hotspots(t, 1) {
		assert.NotNil(t, h.ProductID)
	}
}

func TestFailedPageKeepsCursor(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "Motor")
	f.ai.classifyErr[2] = errors.New("classifier timeout")
	f.ai.table(3, models.TableRow{RefNumber: 4, PartCode: "M4"})

	summary := f.run(t)

	got := outcomes(summary)
	assert.Equal(t, OutcomeFailed, got[2])
	assert.Equal(t, OutcomeTableAttached, got[3])
	assert.Equal(t, []string{"M4"}, f.productCodes(t, 1))
	assert.Error(t, summary.Pages[1].Err)

	var failed bool
	for _, e := range f.events {
		if e.Type == EventPageFailed && e.PageNumber == 2 {
			failed = true
		}
	}
	assert.True(t, failed, "page failure should be observed")
}

func TestMissingImageSkipsPage(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "Hook")
	f.ai.missing[2] = true
	f.ai.table(3, models.TableRow{RefNumber: 1, PartCode: "K1"})

	summary := f.run(t)

	assert.Equal(t, OutcomeSkipped, outcomes(summary)[2])
	assert.NotContains(t, f.ai.classified, 2)
	assert.Equal(t, []string{"K1"}, f.productCodes(t, 1))
}

func TestDetectorFailureStillAdoptsDrawing(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "Frame", "1")
	f.ai.drawing(2, "Spindle", "1")
	f.ai.detectErr[2] = errors.New("detector unavailable")
	f.ai.table(3, models.TableRow{RefNumber: 1, PartCode: "S1"})

	summary := f.run(t)

	got := outcomes(summary)
	assert.Equal(t, OutcomeDrawing, got[1])
	assert.Equal(t, OutcomeFailed, got[2])
	assert.Equal(t, OutcomeTableAttached, got[3])
	assert.Equal(t, 2, summary.Pages[2].OwnerPageNumber)

	// the table belongs to the failed drawing, never the one before it
	assert.Equal(t, []string{"S1"}, f.productCodes(t, 2))
	assert.Empty(t, f.productCodes(t, 1))
	assert.Empty(t, f.hotspots(t, 2))
	assert.Len(t, f.hotspots(t, 1), 1)
}

func TestDetectorFailureLeavesStoredDrawingUntouched(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.ai.drawing(1, "Old drawing", "1", "2")
	f.ai.irrelevant(2)
	f.run(t)

	f.ai.drawing(1, "New drawing", "9")
	f.ai.detectErr[1] = errors.New("detector unavailable")
	summary := f.run(t)

	assert.Equal(t, OutcomeFailed, outcomes(summary)[1])
	assert.Len(t, f.hotspots(t, 1), 2)
	assert.Equal(t, "Old drawing", f.page(t, 1).AiDescription)
}

func TestPanickingCollaboratorFailsOnlyThatPage(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4)
	f.ai.drawing(1, "Base", "4")
	f.ai.panics[2] = true
	f.ai.table(3, models.TableRow{RefNumber: 4, PartCode: "B4"})
	f.ai.irrelevant(4)

	summary := f.run(t)

	got := outcomes(summary)
	assert.Equal(t, OutcomeFailed, got[2])
	assert.ErrorContains(t, summary.Pages[1].Err, "classifier crashed")
	assert.Equal(t, OutcomeTableAttached, got[3])
	assert.Equal(t, OutcomeIrrelevant, got[4])
	assert.Equal(t, []string{"B4"}, f.productCodes(t, 1))
	assert.Equal(t, 1, summary.HotspotsLinked)

	catalog, err := f.store.GetCatalog(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, catalog.Status)
}

func TestExtractorFailureKeepsDrawingActive(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "Feed")
	f.ai.table(2, models.TableRow{RefNumber: 1, PartCode: "lost"})
	f.ai.extractErr[2] = errors.New("ocr failed")
	f.ai.table(3, models.TableRow{RefNumber: 2, PartCode: "F2"})

	summary := f.run(t)

	assert.Equal(t, OutcomeFailed, outcomes(summary)[2])
	assert.Equal(t, []string{"F2"}, f.productCodes(t, 1))
}

func TestTitles(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.ai.drawing(1, "  ")
	f.ai.irrelevant(2)
	f.ai.analyses[3] = models.PageAnalysis{Title: "Should not replace"}

	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpdatePageTitle(ctx, f.pages[3].ID, "Edited by hand"))
	require.NoError(t, tx.SaveChanges())

	f.run(t)

	assert.Equal(t, "Page 1", f.page(t, 1).AiDescription)
	assert.Equal(t, "Index", f.page(t, 2).AiDescription)
	assert.Equal(t, "Edited by hand", f.page(t, 3).AiDescription)
}

func TestCancelledRunStopsBetweenPages(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.ai.drawing(1, "A")
	f.ai.drawing(2, "B")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.proc.ProcessCatalog(ctx, f.catalog.ID)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Pages)
	assert.Empty(t, f.ai.classified)
}

func TestCoverAnalysisRenamesCatalog(t *testing.T) {
	f := newFixture(t, 1)
	f.ai.irrelevant(1)
	f.ai.cover = &models.CoverMetadata{MachineModel: "MF-7900", MachineBrand: "JUKI", CatalogTitle: "Parts List"}
	f.proc.collab.Cover = f.ai

	f.run(t)

	catalog, err := f.store.GetCatalog(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	assert.Equal(t, "MF-7900 (Parts List)", catalog.Name)
	assert.Equal(t, "JUKI", catalog.MachineBrand)
	assert.Equal(t, models.DefaultMachineGroup, catalog.MachineGroup)
}

func TestCoverFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, 1)
	f.ai.drawing(1, "Cover drawing")
	f.proc.collab.Cover = f.ai

	summary := f.run(t)

	assert.Equal(t, OutcomeDrawing, outcomes(summary)[1])
	catalog, err := f.store.GetCatalog(context.Background(), f.catalog.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test catalog", catalog.Name)
}

func TestHooksRunAfterMatching(t *testing.T) {
	f := newFixture(t, 1)
	f.ai.irrelevant(1)

	var ran []string
	f.proc.AddHook(Hook{Name: "train", Run: func(ctx context.Context, c *models.Catalog) error {
		ran = append(ran, "train")
		return errors.New("trainer offline")
	}})
	f.proc.AddHook(Hook{Name: "ingest", Run: func(ctx context.Context, c *models.Catalog) error {
		ran = append(ran, "ingest")
		return nil
	}})

	f.run(t)

	assert.Equal(t, []string{"train", "ingest"}, ran)
	var hookFailed bool
	for _, e := range f.events {
		if e.Type == EventHookFailed && e.Detail == "train" {
			hookFailed = true
		}
	}
	assert.True(t, hookFailed)
}

func TestUnknownCatalog(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.ProcessCatalog(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalogWithoutPages(t *testing.T) {
	f := newFixture(t)
	summary := f.run(t)
	assert.Empty(t, summary.Pages)
	assert.Equal(t, EventNoPages, f.events[len(f.events)-1].Type)
}
