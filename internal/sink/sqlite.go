package sink

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"buildingsearch/internal/components/sqliteutil"
	"buildingsearch/internal/query"
	"buildingsearch/internal/scrapers/hcr/grid"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("internal/sink")

// SQLiteSink stores rows and counts under a run id so several runs can share
// one database file.
type SQLiteSink struct {
	db      *sql.DB
	owned   bool
	runId   string
	notices io.Writer
	next    map[query.Target]int
}

// OpenSQLiteSink opens the database at path, the sink closes it on Close.
func OpenSQLiteSink(path string, notices io.Writer) (*SQLiteSink, error) {
	db, err := sqliteutil.OpenWithSchema(Schema, path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteSink(context.Background(), db, notices)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteSink starts a new run in a database that already has Schema
// applied.
func NewSQLiteSink(ctx context.Context, db *sql.DB, notices io.Writer) (*SQLiteSink, error) {
	runId, err := random.String(12)
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	_, err = db.ExecContext(
		ctx,
		"insert into runs (id, started_at) values (?, ?)",
		runId, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &SQLiteSink{
		db:      db,
		runId:   runId,
		notices: notices,
		next:    map[query.Target]int{},
	}, nil
}

func (s *SQLiteSink) RunId() string {
	return s.runId
}

func (s *SQLiteSink) WriteRow(target query.Target, row grid.Row) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return err
	}
	idx := s.next[target]
	_, err = s.db.Exec(
		"insert into buildings (run_id, county, zip, idx, cells) values (?, ?, ?, ?, ?)",
		s.runId, target.County, target.Zip, idx, string(cells),
	)
	if err != nil {
		return fmt.Errorf("insert building: %w", err)
	}
	s.next[target] = idx + 1
	return nil
}

func (s *SQLiteSink) WriteCount(target query.Target, count int) error {
	_, span := tracer.Start(context.Background(), "WriteCount")
	defer span.End()
	span.SetAttributes(
		attribute.String("county", target.County),
		attribute.String("zip", target.Zip),
	)

	_, err := s.db.Exec(
		"insert or replace into counts (run_id, county, zip, total) values (?, ?, ?, ?)",
		s.runId, target.County, target.Zip, count,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert count")
		return fmt.Errorf("insert count: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Notice(msg string) {
	fmt.Fprintln(s.notices, msg)
}

func (s *SQLiteSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
