// Package grid reads the results grid rendered by the building search portal.
package grid

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"buildingsearch/internal/components/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	gridSelector = "table.grid"
	// the pager and the status banner span every column of the grid
	pagerSelector = `td[colspan="7"]`
	statusBanner  = "Displaying buildings "
	nextControl   = `value="Next"`
)

// Row is one data row of the grid, cells in column order.
type Row []string

// MissingTableError means the markup has no results grid, usually because an
// error page or a redirect target came back instead of results.
type MissingTableError struct {
	Selector string
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("missing results table (%s)", e.Selector)
}

// NormalizeCell collapses every whitespace run into a single space and trims
// the ends.
func NormalizeCell(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func skipRow(table, tr *goquery.Selection) bool {
	first := tr.ChildrenFiltered("td").First()
	if first.Length() == 0 {
		return true
	}
	if first.AttrOr("colspan", "") == "7" {
		return true
	}
	// rows of a table nested inside the pager cell
	if tr.ParentsUntilSelection(table).Filter(pagerSelector).Length() > 0 {
		return true
	}
	raw, err := goquery.OuterHtml(tr)
	if err != nil || strings.Contains(raw, statusBanner) {
		return true
	}
	return false
}

// ExtractRows finds the results grid in markup and returns its data rows in
// document order. Rows are read lazily as the sequence is consumed.
func ExtractRows(markup string) (iter.Seq[Row], error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return ExtractRowsFromDocument(doc)
}

// ExtractRowsFromDocument is ExtractRows for an already parsed document.
func ExtractRowsFromDocument(doc *goquery.Document) (iter.Seq[Row], error) {
	table := doc.Find(gridSelector).First()
	if table.Length() == 0 {
		return nil, &MissingTableError{Selector: gridSelector}
	}

	rows := table.Find("tr")
	seq := func(yield func(Row) bool) {
		for i := range rows.Nodes {
			tr := rows.Eq(i)
			if skipRow(table, tr) {
				continue
			}

			cells := tr.ChildrenFiltered("td")
			row := make(Row, 0, cells.Length())
			cells.Each(func(_ int, td *goquery.Selection) {
				row = append(row, NormalizeCell(htmlutil.Text(td.Get(0))))
			})
			if !yield(row) {
				return
			}
		}
	}
	return seq, nil
}

// Status is the "Displaying buildings X - Y of N" banner of a results page.
type Status struct {
	First int
	Last  int
	Total int
}

var statusRegex = regexp.MustCompile(`Displaying buildings (\d+) - (\d+) of (\d+)`)

// ParseStatus reads the status banner, ok is false if it is missing.
func ParseStatus(markup string) (status Status, ok bool) {
	groups := statusRegex.FindStringSubmatch(markup)
	if len(groups) < 4 {
		return Status{}, false
	}

	numbers := make([]int, 3)
	for i, g := range groups[1:] {
		n, err := strconv.Atoi(g)
		if err != nil {
			return Status{}, false
		}
		numbers[i] = n
	}
	return Status{First: numbers[0], Last: numbers[1], Total: numbers[2]}, true
}

var zeroResultsRegex = regexp.MustCompile(`(^|[^0-9])0 results found`)

// ZeroResults reports whether the markup carries the zero results marker.
func ZeroResults(markup string) bool {
	return zeroResultsRegex.MatchString(markup)
}

// HasNextPage reports whether the markup renders the grid's next page button.
func HasNextPage(markup string) bool {
	return strings.Contains(markup, nextControl)
}
