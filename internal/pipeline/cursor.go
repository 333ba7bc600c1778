package pipeline

import (
	"github.com/google/uuid"
	"github.com/katalogcu/partalog/internal/models"
)

// MaxTableGap is the furthest a parts table may sit after its drawing, in pages
const MaxTableGap = 2

// Kind is what a page was classified as
type Kind int

const (
	KindIrrelevant Kind = iota
	KindDrawing
	KindPartsList
)

func (k Kind) String() string {
	switch k {
	case KindDrawing:
		return "drawing"
	case KindPartsList:
		return "parts_list"
	default:
		return "irrelevant"
	}
}

// Classify maps a classifier verdict to a Kind. A page flagged as both is a drawing.
func Classify(a models.PageAnalysis) Kind {
	switch {
	case a.IsTechnicalDrawing:
		return KindDrawing
	case a.IsPartsList:
		return KindPartsList
	default:
		return KindIrrelevant
	}
}

// Cursor tracks the drawing that owns the next parts table. The zero value
// is NoActiveDrawing.
type Cursor struct {
	PageID     uuid.UUID
	PageNumber int
}

func NoActiveDrawing() Cursor {
	return Cursor{}
}

func ActiveDrawing(pageID uuid.UUID, pageNumber int) Cursor {
	return Cursor{PageID: pageID, PageNumber: pageNumber}
}

func (c Cursor) Active() bool {
	return c.PageID != uuid.Nil
}

// Action is what the linker does with a page
type Action int

const (
	// ActionAdoptDrawing makes the page the active drawing and refreshes its hotspots
	ActionAdoptDrawing Action = iota
	// ActionAttachTable extracts the table into products owned by the active drawing
	ActionAttachTable
	// ActionDiscardTable drops the table and clears the cursor
	ActionDiscardTable
	// ActionBreakChain clears the cursor for a page that is neither drawing nor table
	ActionBreakChain
)

func (a Action) String() string {
	switch a {
	case ActionAdoptDrawing:
		return "adopt_drawing"
	case ActionAttachTable:
		return "attach_table"
	case ActionDiscardTable:
		return "discard_table"
	default:
		return "break_chain"
	}
}

// Decision is the outcome of Decide for one page
type Decision struct {
	Action Action
	// Next is the cursor to carry into the following page
	Next Cursor
	// Owner is the drawing page that receives the table rows, set for ActionAttachTable
	Owner Cursor
	// Gap is the page distance to the active drawing, 0 when there is none
	Gap int
}

// Decide applies the linking rules for one page given the cursor left by the previous page.
func Decide(cur Cursor, page models.Page, kind Kind) Decision {
	switch kind {
	case KindDrawing:
		return Decision{
			Action: ActionAdoptDrawing,
			Next:   ActiveDrawing(page.ID, page.PageNumber),
		}
	case KindPartsList:
		if !cur.Active() {
			return Decision{Action: ActionDiscardTable, Next: NoActiveDrawing()}
		}
		gap := page.PageNumber - cur.PageNumber
		if gap > 0 && gap <= MaxTableGap {
			return Decision{Action: ActionAttachTable, Next: cur, Owner: cur, Gap: gap}
		}
		return Decision{Action: ActionDiscardTable, Next: NoActiveDrawing(), Gap: gap}
	default:
		return Decision{Action: ActionBreakChain, Next: NoActiveDrawing()}
	}
}
