// Package pipeline walks the pages of a catalog, links parts tables to the
// drawings they belong to, and matches drawing hotspots to products.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/storage"
)

// Collaborators are the services a Processor calls for each page.
// Cover is optional.
type Collaborators struct {
	Images     ImageSource
	Classifier PageClassifier
	Detector   HotspotDetector
	Extractor  TableExtractor
	Cover      CoverAnalyzer
}

// Processor runs catalogs through the page pipeline. One Processor may run
// several catalogs concurrently; each run has its own cursor.
type Processor struct {
	store    storage.Store
	collab   Collaborators
	observer Observer
	hooks    []Hook
	now      func() time.Time
}

func New(store storage.Store, collab Collaborators, observer Observer) *Processor {
	if observer == nil {
		observer = NewLogObserver(nil)
	}
	return &Processor{
		store:    store,
		collab:   collab,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddHook registers a best-effort step that runs after every completed catalog run
func (p *Processor) AddHook(h Hook) {
	p.hooks = append(p.hooks, h)
}

// ProcessCatalog runs every page of the catalog in page order, then the
// hotspot matcher and the post-run hooks. Page failures are reported through
// the observer and never abort the run. An error is returned only when the
// catalog cannot be loaded or ctx is cancelled between pages.
func (p *Processor) ProcessCatalog(ctx context.Context, catalogID uuid.UUID) (*RunSummary, error) {
	catalog, err := p.store.GetCatalog(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", catalogID, err)
	}
	pages, err := p.store.ListPages(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages of catalog %s: %w", catalogID, err)
	}

	summary := &RunSummary{
		CatalogID:   catalogID,
		CatalogName: catalog.Name,
		StartedAt:   p.now(),
	}
	p.observer.Observe(Event{Type: EventRunStarted, CatalogID: catalogID, Count: len(pages)})

	if len(pages) == 0 {
		p.observer.Observe(Event{Type: EventNoPages, CatalogID: catalogID})
		summary.FinishedAt = p.now()
		return summary, nil
	}

	catalog.Status = models.StatusProcessing
	p.saveCatalog(ctx, catalog)

	cursor := NoActiveDrawing()
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			summary.FinishedAt = p.now()
			p.observer.Observe(Event{Type: EventRunCancelled, CatalogID: catalogID, Err: err})
			return summary, err
		}

		var outcome PageOutcome
		outcome, cursor = p.runPage(ctx, catalog, page, cursor)
		summary.Pages = append(summary.Pages, outcome)
	}

	linked, err := p.MatchCatalog(ctx, catalogID)
	if err != nil {
		summary.MatchErr = err
		p.observer.Observe(Event{Type: EventMatchFailed, CatalogID: catalogID, Err: err})
	} else {
		summary.HotspotsLinked = linked
		p.observer.Observe(Event{Type: EventHotspotsMatched, CatalogID: catalogID, Count: linked})
	}

	catalog.Status = models.StatusDraft
	p.saveCatalog(ctx, catalog)
	summary.CatalogName = catalog.Name

	for _, hook := range p.hooks {
		if err := hook.Run(ctx, catalog); err != nil {
			p.observer.Observe(Event{Type: EventHookFailed, CatalogID: catalogID, Detail: hook.Name, Err: err})
		}
	}

	summary.FinishedAt = p.now()
	p.observer.Observe(Event{Type: EventRunFinished, CatalogID: catalogID, Detail: catalog.Name})
	return summary, nil
}

// runPage turns a panic while handling the page into a page failure
func (p *Processor) runPage(ctx context.Context, catalog *models.Catalog, page models.Page, cursor Cursor) (outcome PageOutcome, next Cursor) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while processing page: %v", r)
			outcome = PageOutcome{PageID: page.ID, PageNumber: page.PageNumber, Outcome: OutcomeFailed, Err: err}
			next = cursor
			p.observer.Observe(Event{
				Type:       EventPageFailed,
				CatalogID:  catalog.ID,
				PageID:     page.ID,
				PageNumber: page.PageNumber,
				Err:        err,
			})
		}
	}()
	return p.processPage(ctx, catalog, page, cursor)
}

// processPage handles one page and returns the cursor for the next one.
// On any failure the incoming cursor is returned unchanged.
func (p *Processor) processPage(ctx context.Context, catalog *models.Catalog, page models.Page, cursor Cursor) (PageOutcome, Cursor) {
	outcome := PageOutcome{PageID: page.ID, PageNumber: page.PageNumber}
	base := Event{CatalogID: catalog.ID, PageID: page.ID, PageNumber: page.PageNumber}

	fail := func(err error) (PageOutcome, Cursor) {
		outcome.Outcome = OutcomeFailed
		outcome.Err = err
		e := base
		e.Type = EventPageFailed
		e.Err = err
		p.observer.Observe(e)
		return outcome, cursor
	}

	image, err := p.collab.Images.Load(ctx, page)
	if errors.Is(err, ErrImageNotFound) {
		outcome.Outcome = OutcomeSkipped
		outcome.Err = err
		e := base
		e.Type = EventPageSkipped
		e.Detail = err.Error()
		p.observer.Observe(e)
		return outcome, cursor
	}
	if err != nil {
		return fail(fmt.Errorf("failed to load image: %w", err))
	}

	if page.PageNumber == 1 && p.collab.Cover != nil {
		p.analyzeCover(ctx, catalog, image)
	}

	analysis, err := p.collab.Classifier.Analyze(ctx, image)
	if err != nil {
		return fail(fmt.Errorf("failed to classify page: %w", err))
	}
	kind := Classify(analysis)
	title := pageTitle(analysis.Title, page.PageNumber)
	outcome.Title = title

	e := base
	e.Type = EventPageClassified
	e.Detail = kind.String()
	p.observer.Observe(e)

	decision := Decide(cursor, page, kind)
	outcome.Gap = decision.Gap
	if decision.Action == ActionAdoptDrawing {
		// A page classified as a drawing owns the cursor even if its writes fail
		cursor = decision.Next
	}

	switch decision.Action {
	case ActionAdoptDrawing:
		detections, err := p.collab.Detector.Detect(ctx, image)
		if err != nil {
			return fail(fmt.Errorf("failed to detect hotspots: %w", err))
		}
		purgedProducts, purgedHotspots, err := p.writeDrawing(ctx, page, title, detections)
		if err != nil {
			return fail(err)
		}
		outcome.Outcome = OutcomeDrawing
		outcome.Hotspots = len(detections)
		outcome.PurgedProducts = purgedProducts
		outcome.PurgedHotspots = purgedHotspots

		e := base
		e.Type = EventDrawingAdopted
		e.Detail = title
		e.Count = len(detections)
		p.observer.Observe(e)

	case ActionAttachTable:
		rows, err := p.collab.Extractor.Extract(ctx, image, page.PageNumber)
		if err != nil {
			return fail(fmt.Errorf("failed to extract table: %w", err))
		}
		if err := p.writeTable(ctx, catalog.ID, page, decision.Owner, title, rows); err != nil {
			return fail(err)
		}
		outcome.Outcome = OutcomeTableAttached
		outcome.OwnerPageNumber = decision.Owner.PageNumber
		outcome.Products = len(rows)

		e := base
		e.Type = EventTableAttached
		e.OwnerPageNumber = decision.Owner.PageNumber
		e.Count = len(rows)
		p.observer.Observe(e)

	case ActionDiscardTable:
		// Nothing would use the rows, so the table is not extracted
		if err := p.fillTitle(ctx, page, title); err != nil {
			return fail(err)
		}
		outcome.Outcome = OutcomeTableDiscarded

		e := base
		e.Type = EventTableDiscarded
		if cursor.Active() {
			e.Detail = fmt.Sprintf("%d pages after drawing on page %d", decision.Gap, cursor.PageNumber)
		} else {
			e.Detail = "no active drawing"
		}
		p.observer.Observe(e)

	case ActionBreakChain:
		if err := p.fillTitle(ctx, page, title); err != nil {
			return fail(err)
		}
		outcome.Outcome = OutcomeIrrelevant

		e := base
		e.Type = EventChainBroken
		p.observer.Observe(e)
	}

	return outcome, decision.Next
}

// writeDrawing replaces the page's products and hotspots and sets its title in one commit
func (p *Processor) writeDrawing(ctx context.Context, page models.Page, title string, detections []models.Detection) (int, int, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin page transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := tx.UpdatePageTitle(ctx, page.ID, title); err != nil {
		return 0, 0, err
	}
	purgedProducts, err := tx.DeleteProductsByPage(ctx, page.ID)
	if err != nil {
		return 0, 0, err
	}
	purgedHotspots, err := tx.DeleteHotspotsByPage(ctx, page.ID)
	if err != nil {
		return 0, 0, err
	}

	if len(detections) > 0 {
		now := p.now()
		hotspots := make([]models.Hotspot, 0, len(detections))
		for _, d := range detections {
			hotspots = append(hotspots, models.Hotspot{
				ID:           uuid.New(),
				PageID:       page.ID,
				Left:         d.Left,
				Top:          d.Top,
				Width:        d.Width,
				Height:       d.Height,
				Label:        d.Label,
				IsAiDetected: true,
				AiConfidence: d.Confidence,
				CreatedAt:    now,
			})
		}
		if err := tx.AddHotspots(ctx, hotspots); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.SaveChanges(); err != nil {
		return 0, 0, err
	}
	return purgedProducts, purgedHotspots, nil
}

// writeTable stores the rows as products of the owning drawing page
func (p *Processor) writeTable(ctx context.Context, catalogID uuid.UUID, page models.Page, owner Cursor, title string, rows []models.TableRow) error {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin page transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fillTitleTx(ctx, tx, page.ID, title); err != nil {
		return err
	}

	if len(rows) > 0 {
		now := p.now()
		sourcePage := strconv.Itoa(page.PageNumber)
		products := make([]models.Product, 0, len(rows))
		for _, r := range rows {
			products = append(products, models.Product{
				ID:         uuid.New(),
				CatalogID:  catalogID,
				PageID:     owner.PageID,
				RefNo:      r.RefNumber,
				Code:       r.PartCode,
				Name:       r.PartName,
				PageNumber: sourcePage,
				CreatedAt:  now,
			})
		}
		if err := tx.AddProducts(ctx, products); err != nil {
			return err
		}
	}

	return tx.SaveChanges()
}

// fillTitle sets the page title only when the page has none yet
func (p *Processor) fillTitle(ctx context.Context, page models.Page, title string) error {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin page transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fillTitleTx(ctx, tx, page.ID, title); err != nil {
		return err
	}
	return tx.SaveChanges()
}

func fillTitleTx(ctx context.Context, tx storage.Tx, pageID uuid.UUID, title string) error {
	current, err := tx.FindPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if strings.TrimSpace(current.AiDescription) != "" {
		return nil
	}
	return tx.UpdatePageTitle(ctx, pageID, title)
}

func (p *Processor) analyzeCover(ctx context.Context, catalog *models.Catalog, image []byte) {
	meta, err := p.collab.Cover.AnalyzeCover(ctx, image)
	if err != nil {
		p.observer.Observe(Event{Type: EventCoverFailed, CatalogID: catalog.ID, PageNumber: 1, Err: err})
		return
	}

	catalog.MachineBrand = meta.MachineBrand
	catalog.MachineModel = meta.MachineModel
	catalog.MachineGroup = meta.MachineGroup
	if strings.TrimSpace(catalog.MachineGroup) == "" {
		catalog.MachineGroup = models.DefaultMachineGroup
	}
	if strings.TrimSpace(meta.MachineModel) != "" {
		catalog.Name = fmt.Sprintf("%s (%s)", meta.MachineModel, meta.CatalogTitle)
	}
	p.saveCatalog(ctx, catalog)
	p.observer.Observe(Event{Type: EventCoverAnalyzed, CatalogID: catalog.ID, PageNumber: 1, Detail: catalog.Name})
}

func (p *Processor) saveCatalog(ctx context.Context, catalog *models.Catalog) {
	if err := p.store.UpdateCatalog(ctx, catalog); err != nil {
		p.observer.Observe(Event{Type: EventCatalogFailed, CatalogID: catalog.ID, Err: err})
	}
}

func pageTitle(title string, pageNumber int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("Page %d", pageNumber)
	}
	return title
}
