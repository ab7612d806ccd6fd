// Package sink serializes query output: result rows, counts and notices.
package sink

import (
	"fmt"
	"io"

	"buildingsearch/internal/query"
)

// Sink is a query.Sink that has to be closed once every query has run.
type Sink interface {
	query.Sink
	Close() error
}

type Format string

const (
	FormatCSV    Format = "csv"
	FormatTable  Format = "table"
	FormatSQLite Format = "sqlite"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatTable, FormatSQLite:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q, expected csv, table or sqlite", s)
}

// CountLine formats a count the way count mode prints it.
func CountLine(target query.Target, n int) string {
	return fmt.Sprintf("%s,%s,%d", target.County, target.Zip, n)
}

// Open creates the sink for a format. out receives rows and counts, notices
// receives diagnostics. dbPath is only used by FormatSQLite.
func Open(format Format, out, notices io.Writer, dbPath string) (Sink, error) {
	switch format {
	case FormatCSV:
		return NewCSVSink(out, notices), nil
	case FormatTable:
		return NewTableSink(out, notices), nil
	case FormatSQLite:
		return OpenSQLiteSink(dbPath, notices)
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
