package sink

import (
	"encoding/csv"
	"fmt"
	"io"

	"buildingsearch/internal/query"
	"buildingsearch/internal/scrapers/hcr/grid"
)

// CSVSink writes one comma separated line per row as soon as it arrives.
type CSVSink struct {
	out     io.Writer
	writer  *csv.Writer
	notices io.Writer
}

func NewCSVSink(out, notices io.Writer) *CSVSink {
	writer := csv.NewWriter(out)
	return &CSVSink{out: out, writer: writer, notices: notices}
}

func (s *CSVSink) WriteRow(target query.Target, row grid.Row) error {
	err := s.writer.Write(row)
	if err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVSink) WriteCount(target query.Target, count int) error {
	s.writer.Flush()
	_, err := fmt.Fprintln(s.out, CountLine(target, count))
	return err
}

func (s *CSVSink) Notice(msg string) {
	fmt.Fprintln(s.notices, msg)
}

func (s *CSVSink) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}
