package sink

import (
	"fmt"
	"io"

	"buildingsearch/internal/query"
	"buildingsearch/internal/scrapers/hcr/grid"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableSink collects everything and renders it as tables on Close.
type TableSink struct {
	out     io.Writer
	notices io.Writer

	rows     []table.Row
	width    int
	counts   []table.Row
	rendered bool
}

func NewTableSink(out, notices io.Writer) *TableSink {
	return &TableSink{out: out, notices: notices}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func (s *TableSink) WriteRow(target query.Target, row grid.Row) error {
	tr := table.Row{target.County, target.Zip}
	for _, cell := range row {
		tr = append(tr, cell)
	}
	s.rows = append(s.rows, tr)
	if len(row) > s.width {
		s.width = len(row)
	}
	return nil
}

func (s *TableSink) WriteCount(target query.Target, count int) error {
	s.counts = append(s.counts, table.Row{target.County, target.Zip, count})
	return nil
}

func (s *TableSink) Notice(msg string) {
	fmt.Fprintln(s.notices, msg)
}

func (s *TableSink) Close() error {
	if s.rendered {
		return nil
	}
	s.rendered = true

	if len(s.rows) > 0 {
		t := newTable(s.out)
		header := table.Row{"County", "Zip"}
		for i := 1; i <= s.width; i++ {
			header = append(header, fmt.Sprintf("Column %d", i))
		}
		t.AppendHeader(header)
		t.AppendRows(s.rows)
		t.AppendFooter(table.Row{"", "Total", len(s.rows)})
		t.Render()
	}
	if len(s.counts) > 0 {
		t := newTable(s.out)
		t.AppendHeader(table.Row{"County", "Zip", "Buildings"})
		t.AppendRows(s.counts)
		t.Render()
	}
	return nil
}
