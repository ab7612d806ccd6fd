package sink

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"buildingsearch/internal/components/sqliteutil"
	"buildingsearch/internal/query"
	"buildingsearch/internal/scrapers/hcr/grid"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var (
	manhattan = query.Target{County: "NEW YORK", Zip: "10001"}
	brooklyn  = query.Target{County: "KINGS", Zip: "11201"}
)

func TestCSVSink(t *testing.T) {
	var out, notices bytes.Buffer
	s := NewCSVSink(&out, &notices)

	s.Notice("2 buildings found in 10001")
	require.NoError(t, s.WriteRow(manhattan, grid.Row{"101", "2", "MAIN ST"}))
	require.NoError(t, s.WriteRow(manhattan, grid.Row{"102", "4", "BROADWAY, REAR"}))
	require.NoError(t, s.WriteCount(brooklyn, 137))
	require.NoError(t, s.Close())

	require.Equal(t, "101,2,MAIN ST\n102,4,\"BROADWAY, REAR\"\nKINGS,11201,137\n", out.String())
	require.Equal(t, "2 buildings found in 10001\n", notices.String())
}

func TestCountLine(t *testing.T) {
	require.Equal(t, "NEW YORK,10001,0", CountLine(manhattan, 0))
}

func TestTableSink(t *testing.T) {
	var out, notices bytes.Buffer
	s := NewTableSink(&out, &notices)

	require.NoError(t, s.WriteRow(manhattan, grid.Row{"101", "2", "MAIN ST"}))
	require.NoError(t, s.WriteCount(brooklyn, 137))
	require.Empty(t, out.String())

	require.NoError(t, s.Close())
	rendered := out.String()
	require.Contains(t, rendered, "MAIN ST")
	require.Contains(t, rendered, "COLUMN 3")
	require.Contains(t, rendered, "137")

	// rendering happens once
	require.NoError(t, s.Close())
	require.Equal(t, rendered, out.String())
}

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	db, err := sqliteutil.OpenWithSchema(Schema, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var notices bytes.Buffer
	s, err := NewSQLiteSink(ctx, db, &notices)
	require.NoError(t, err)
	require.NotEmpty(t, s.RunId())

	manhattanRows := []grid.Row{{"101", "2", "MAIN ST"}, {"102", "4", "BROADWAY"}}
	for _, row := range manhattanRows {
		require.NoError(t, s.WriteRow(manhattan, row))
	}
	require.NoError(t, s.WriteRow(brooklyn, grid.Row{"201", "9", "COURT ST"}))
	require.NoError(t, s.WriteCount(brooklyn, 1))
	require.NoError(t, s.WriteCount(brooklyn, 3))
	require.NoError(t, s.Close())

	rows, err := storedRows(ctx, db, s.RunId(), manhattan)
	require.NoError(t, err)
	if diff := cmp.Diff(manhattanRows, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	var total int
	err = db.QueryRow(
		"select total from counts where run_id = ? and county = ? and zip = ?",
		s.RunId(), brooklyn.County, brooklyn.Zip,
	).Scan(&total)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	// a second run does not collide with the first
	second, err := NewSQLiteSink(ctx, db, &notices)
	require.NoError(t, err)
	require.NotEqual(t, s.RunId(), second.RunId())
	require.NoError(t, second.WriteRow(manhattan, grid.Row{"101", "2", "MAIN ST"}))
}

func TestOpenSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	var notices bytes.Buffer

	s, err := Open(FormatSQLite, nil, &notices, path)
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(manhattan, grid.Row{"101"}))
	s.Notice("1 buildings found in 10001")
	require.NoError(t, s.Close())
	require.Equal(t, "1 buildings found in 10001\n", notices.String())
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func storedRows(ctx context.Context, db *sql.DB, runId string, target query.Target) ([]grid.Row, error) {
	rows, err := db.QueryContext(
		ctx,
		"select cells from buildings where run_id = ? and county = ? and zip = ? order by idx",
		runId, target.County, target.Zip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []grid.Row
	for rows.Next() {
		var cells string
		err := rows.Scan(&cells)
		if err != nil {
			return nil, err
		}
		var row grid.Row
		err = json.Unmarshal([]byte(cells), &row)
		if err != nil {
			return nil, fmt.Errorf("decode cells: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
