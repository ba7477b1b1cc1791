package dalonline

import (
	"errors"
	"fmt"
	"seatwatch/lib/htmlutil"
	"seatwatch/lib/textutil"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// ErrSchemaMismatch means the page no longer has the shape the extractor
// expects, retrying will not help, the selectors need updating.
var ErrSchemaMismatch = errors.New("timetable page layout changed")

const (
	// SeatCellSelector matches the schedule detail cells of the timetable.
	SeatCellSelector = "td.dettl"
	// SeatCellIndex is the position of the available seats cell among all
	// detail cells of the page (the 16th one).
	SeatCellIndex = 15
)

// CellValidator inspects the selected cell before its value is read, a
// non-nil error rejects the extraction.
type CellValidator func(cell *goquery.Selection) error

// SeatExtractor reads the number of open seats out of a timetable page by
// position: the Index-th cell matching Selector, then the text of the
// first <p> inside it.
type SeatExtractor struct {
	Selector string
	Index    int
	// optional
	Validate CellValidator
}

func NewSeatExtractor(validate CellValidator) SeatExtractor {
	return SeatExtractor{
		Selector: SeatCellSelector,
		Index:    SeatCellIndex,
		Validate: validate,
	}
}

// ExtractSeats uses the positional rule without any validation.
func ExtractSeats(doc *goquery.Document) (int, error) {
	return NewSeatExtractor(nil).Extract(doc)
}

func (e SeatExtractor) Extract(doc *goquery.Document) (int, error) {
	selector := e.Selector
	if selector == "" {
		selector = SeatCellSelector
	}

	cells := doc.Find(selector)
	if e.Index < 0 || e.Index >= cells.Length() {
		return 0, fmt.Errorf(
			"%w: found %d cells matching %q, seat cell is at index %d",
			ErrSchemaMismatch, cells.Length(), selector, e.Index,
		)
	}
	cell := cells.Eq(e.Index)

	if e.Validate != nil {
		err := e.Validate(cell)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
	}

	p := cell.Find("p").First()
	if p.Length() == 0 {
		return 0, fmt.Errorf("%w: seat cell has no <p> element", ErrSchemaMismatch)
	}
	text := htmlutil.NodeText(p.Get(0))
	seats, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: seat cell text %q is not a number", ErrSchemaMismatch, text)
	}
	// over-enrolled sections report a negative count
	if seats < 0 {
		return 0, nil
	}
	return seats, nil
}

const headerSimilarity = 0.9

func colspan(cell *goquery.Selection) int {
	n, err := strconv.Atoi(cell.AttrOr("colspan", "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cellsOf(row *goquery.Selection) *goquery.Selection {
	return row.ChildrenFiltered("td, th")
}

// columnOf returns the first grid column occupied by `cell`, counting
// colspans of the cells before it.
func columnOf(cell *goquery.Selection) int {
	col := 0
	cell.PrevAllFiltered("td, th").Each(func(_ int, s *goquery.Selection) {
		col += colspan(s)
	})
	return col
}

// cellAtColumn returns the cell of `row` covering grid column `col`.
func cellAtColumn(row *goquery.Selection, col int) *goquery.Selection {
	start := 0
	var found *goquery.Selection
	cellsOf(row).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		span := colspan(s)
		if col >= start && col < start+span {
			found = s
			return false
		}
		start += span
		return true
	})
	return found
}

// RequireColumnHeader checks that some row above the selected cell, in
// the same table, labels the cell's column with `label` (case and
// whitespace insensitive, tolerating small spelling differences).
func RequireColumnHeader(label string) CellValidator {
	return func(cell *goquery.Selection) error {
		row := cell.ParentsFiltered("tr").First()
		table := row.ParentsFiltered("table").First()
		if row.Length() == 0 || table.Length() == 0 {
			return fmt.Errorf("seat cell is not inside a table row")
		}
		col := columnOf(cell)

		var above []*goquery.Selection
		table.Find("tr").EachWithBreak(func(_ int, r *goquery.Selection) bool {
			if r.Get(0) == row.Get(0) {
				return false
			}
			if r.ParentsFiltered("table").First().Get(0) != table.Get(0) {
				return true
			}
			above = append(above, r)
			return true
		})

		for i := len(above) - 1; i >= 0; i-- {
			header := cellAtColumn(above[i], col)
			if header == nil {
				continue
			}
			if textutil.MatchName(header.Text(), label, headerSimilarity) {
				return nil
			}
		}
		return fmt.Errorf("no header labelled %q above column %d", label, col)
	}
}
