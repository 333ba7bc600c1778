package pipeline

import (
	"log/slog"

	"github.com/google/uuid"
)

// EventType names something that happened during a run
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventNoPages         EventType = "no_pages"
	EventCoverAnalyzed   EventType = "cover_analyzed"
	EventCoverFailed     EventType = "cover_failed"
	EventPageSkipped     EventType = "page_skipped"
	EventPageClassified  EventType = "page_classified"
	EventDrawingAdopted  EventType = "drawing_adopted"
	EventTableAttached   EventType = "table_attached"
	EventTableDiscarded  EventType = "table_discarded"
	EventChainBroken     EventType = "chain_broken"
	EventPageFailed      EventType = "page_failed"
	EventHotspotsMatched EventType = "hotspots_matched"
	EventMatchFailed     EventType = "match_failed"
	EventCatalogFailed   EventType = "catalog_update_failed"
	EventHookFailed      EventType = "hook_failed"
	EventRunCancelled    EventType = "run_cancelled"
	EventRunFinished     EventType = "run_finished"
)

// Event carries the facts of one EventType. Unused fields are zero.
type Event struct {
	Type       EventType
	CatalogID  uuid.UUID
	PageID     uuid.UUID
	PageNumber int
	// OwnerPageNumber is the drawing a table was attached to
	OwnerPageNumber int
	Count           int
	Detail          string
	Err             error
}

// Observer receives run events. Implementations must not block for long;
// they are called inline from the page loop.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to several observers
type Observers []Observer

func (o Observers) Observe(e Event) {
	for _, obs := range o {
		obs.Observe(e)
	}
}

// LogObserver writes events as structured log records
type LogObserver struct {
	Logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (l *LogObserver) Observe(e Event) {
	attrs := []any{"catalog_id", e.CatalogID}
	if e.PageNumber > 0 {
		attrs = append(attrs, "page", e.PageNumber, "page_id", e.PageID)
	}

	switch e.Type {
	case EventRunStarted:
		l.Logger.Info("Catalog run started", append(attrs, "pages", e.Count)...)
	case EventNoPages:
		l.Logger.Warn("Catalog has no pages", attrs...)
	case EventCoverAnalyzed:
		l.Logger.Info("Cover analyzed", append(attrs, "name", e.Detail)...)
	case EventCoverFailed:
		l.Logger.Warn("Cover analysis failed", append(attrs, "err", e.Err)...)
	case EventPageSkipped:
		l.Logger.Warn("Page skipped", append(attrs, "reason", e.Detail)...)
	case EventPageClassified:
		l.Logger.Debug("Page classified", append(attrs, "kind", e.Detail)...)
	case EventDrawingAdopted:
		l.Logger.Info("Drawing page processed", append(attrs, "title", e.Detail, "hotspots", e.Count)...)
	case EventTableAttached:
		l.Logger.Info("Parts table attached", append(attrs, "drawing_page", e.OwnerPageNumber, "products", e.Count)...)
	case EventTableDiscarded:
		l.Logger.Info("Parts table discarded", append(attrs, "reason", e.Detail)...)
	case EventChainBroken:
		l.Logger.Debug("Page breaks drawing chain", attrs...)
	case EventPageFailed:
		l.Logger.Error("Page failed", append(attrs, "err", e.Err)...)
	case EventHotspotsMatched:
		l.Logger.Info("Hotspots matched to products", append(attrs, "linked", e.Count)...)
	case EventMatchFailed:
		l.Logger.Error("Hotspot matching failed", append(attrs, "err", e.Err)...)
	case EventCatalogFailed:
		l.Logger.Error("Unable to save catalog", append(attrs, "err", e.Err)...)
	case EventHookFailed:
		l.Logger.Warn("Post-run hook failed", append(attrs, "hook", e.Detail, "err", e.Err)...)
	case EventRunCancelled:
		l.Logger.Warn("Catalog run cancelled", append(attrs, "err", e.Err)...)
	case EventRunFinished:
		l.Logger.Info("Catalog run finished", append(attrs, "name", e.Detail)...)
	default:
		l.Logger.Debug("Pipeline event", append(attrs, "type", string(e.Type))...)
	}
}
