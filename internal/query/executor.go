// Package query runs whole county/zip queries against the portal on top of
// a postback driver.
package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"buildingsearch/internal/components/assert"
	"buildingsearch/internal/components/telemetry"
	"buildingsearch/internal/scrapers/hcr"
	"buildingsearch/internal/scrapers/hcr/grid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_executor_first_page = "executor.first-page"
	report_executor_scrape     = "executor.scrape"
	report_executor_batch      = "executor.batch"
)

// Driver is the postback workflow the executor walks through, *hcr.Driver
// implements it.
type Driver interface {
	EstablishSession(ctx context.Context) error
	SelectCounty(ctx context.Context, county string) error
	SubmitZip(ctx context.Context, zip string) (string, error)
	AdvancePage(ctx context.Context) ([]grid.Row, error)
	HasNextPage() bool
	Close() error
}

// DriverFactory creates a fresh driver, one per query, drivers are never
// reused across queries.
type DriverFactory func() (Driver, error)

// Sink receives the output of queries.
type Sink interface {
	WriteRow(target Target, row grid.Row) error
	WriteCount(target Target, count int) error
	// Notice receives human readable diagnostics such as result counts.
	Notice(msg string)
}

// Action selects what a query does.
type Action string

const (
	ActionScrape Action = "scrape"
	ActionCount  Action = "count"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionScrape, ActionCount:
		return Action(s), nil
	}
	return "", &hcr.InputError{Field: "action", Value: s, Reason: "must be scrape or count"}
}

// Summary describes a finished scrape.
type Summary struct {
	Target      Target
	ZeroResults bool
	// Expected is the total the portal reported on the first page.
	Expected int
	Rows     int
	Pages    int
}

type Executor struct {
	newDriver   DriverFactory
	tel         telemetry.API
	rowsCounter metric.Int64Counter
}

func NewExecutor(newDriver DriverFactory, tel telemetry.API) Executor {
	assert.NotNil(newDriver)
	assert.NotNil(tel)

	rowsCounter, _ := otel.Meter("buildingsearch.query").Int64Counter(
		"rows_scraped",
		metric.WithDescription("result rows written to the sink"),
	)

	return Executor{
		newDriver:   newDriver,
		tel:         telemetry.NewScopedAPI("query", tel),
		rowsCounter: rowsCounter,
	}
}

// firstPage walks a fresh driver up to the first results page.
func (e Executor) firstPage(ctx context.Context, driver Driver, target Target) (string, error) {
	if !KnownCounty(target.County) {
		e.tel.ReportWarning(
			report_executor_first_page,
			fmt.Errorf("unknown county %q, did you mean %q?", target.County, SuggestCounty(target.County)),
		)
	}

	e.tel.ReportDebug("starting", target.County, target.Zip)

	err := driver.EstablishSession(ctx)
	if err != nil {
		return "", err
	}
	err = driver.SelectCounty(ctx, target.County)
	if err != nil {
		return "", err
	}
	return driver.SubmitZip(ctx, target.Zip)
}

func parseTotal(body string) (int, error) {
	status, ok := grid.ParseStatus(body)
	if !ok {
		return 0, &hcr.InputError{
			Field:  "results status",
			Value:  "",
			Reason: "first results page has no \"Displaying buildings X - Y of N\" banner",
		}
	}
	return status.Total, nil
}

// RunCount returns how many buildings the portal has for the target. It
// never pages.
func (e Executor) RunCount(ctx context.Context, target Target) (int, error) {
	driver, err := e.newDriver()
	if err != nil {
		return 0, err
	}
	defer driver.Close()

	body, err := e.firstPage(ctx, driver, target)
	if err != nil {
		e.tel.ReportBroken(report_executor_first_page, err, target.County, target.Zip)
		return 0, err
	}
	if grid.ZeroResults(body) {
		return 0, nil
	}
	return parseTotal(body)
}

// writeRows forwards rows to sink as they are read.
func (e Executor) writeRows(ctx context.Context, target Target, rows iter.Seq[grid.Row], sink Sink, summary *Summary) error {
	var written int64
	for row := range rows {
		err := sink.WriteRow(target, row)
		if err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		summary.Rows++
		written++
	}
	if e.rowsCounter != nil {
		e.rowsCounter.Add(ctx, written, metric.WithAttributes(
			attribute.String("county", target.County),
			attribute.String("zip", target.Zip),
		))
	}
	return nil
}

// RunScrape writes every row the portal has for the target to sink, page by
// page. Rows written before a failure stay written, the returned summary
// counts them.
func (e Executor) RunScrape(ctx context.Context, target Target, sink Sink) (Summary, error) {
	summary := Summary{Target: target}

	driver, err := e.newDriver()
	if err != nil {
		return summary, err
	}
	defer driver.Close()

	body, err := e.firstPage(ctx, driver, target)
	if err != nil {
		e.tel.ReportBroken(report_executor_first_page, err, target.County, target.Zip)
		return summary, err
	}

	if grid.ZeroResults(body) {
		summary.ZeroResults = true
		sink.Notice(fmt.Sprintf("0 buildings found in %s", target.Zip))
		return summary, nil
	}

	total, err := parseTotal(body)
	if err != nil {
		return summary, err
	}
	summary.Expected = total
	sink.Notice(fmt.Sprintf("%d buildings found in %s", total, target.Zip))

	seq, err := grid.ExtractRows(body)
	if err != nil {
		return summary, &hcr.ProtocolShapeError{
			Step:     "submit zip",
			Expected: "results grid on the first page",
			Err:      err,
		}
	}
	err = e.writeRows(ctx, target, seq, sink, &summary)
	if err != nil {
		return summary, err
	}
	summary.Pages = 1

	for driver.HasNextPage() {
		rows, err := driver.AdvancePage(ctx)
		if err != nil {
			e.tel.ReportBroken(report_executor_scrape, err, target.County, target.Zip, summary.Pages+1)
			return summary, fmt.Errorf("page %d: %w", summary.Pages+1, err)
		}
		summary.Pages++
		err = e.writeRows(ctx, target, slices.Values(rows), sink, &summary)
		if err != nil {
			return summary, err
		}
	}

	if summary.Rows != summary.Expected {
		e.tel.ReportWarning(
			report_executor_scrape,
			fmt.Errorf("expected %d rows, got %d", summary.Expected, summary.Rows),
			target.County,
			target.Zip,
		)
	}
	e.tel.ReportCount(report_executor_scrape, int64(summary.Rows))

	return summary, nil
}

// Run performs a single action for a single target.
func (e Executor) Run(ctx context.Context, action Action, target Target, sink Sink) error {
	switch action {
	case ActionCount:
		n, err := e.RunCount(ctx, target)
		if err != nil {
			return err
		}
		return sink.WriteCount(target, n)
	case ActionScrape:
		_, err := e.RunScrape(ctx, target, sink)
		return err
	}
	return &hcr.InputError{Field: "action", Value: string(action), Reason: "unknown action"}
}

// RunBatch runs the action over every target one after another, each with
// its own session. A failed target does not stop the batch, cancelling ctx
// does.
func (e Executor) RunBatch(ctx context.Context, action Action, targets []Target, sink Sink) error {
	var errs []error
	for i, target := range targets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		err := e.Run(ctx, action, target, sink)
		if err != nil {
			e.tel.ReportWarning(report_executor_batch, err, target.County, target.Zip)
			errs = append(errs, fmt.Errorf("%s %s: %w", target.County, target.Zip, err))
		}
		e.tel.ReportCount(report_executor_batch, int64(i+1))
	}
	return errors.Join(errs...)
}
