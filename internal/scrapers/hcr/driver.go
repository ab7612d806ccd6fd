// Package hcr emulates the client side of the NY HCR building search portal,
// an ASP.NET WebForms app that is only reachable through postbacks.
//
// The workflow the portal's own javascript goes through is:
//  1. GET the landing page to get a session cookie and the first tokens.
//  2. Postback the "search by zip code" link.
//  3. Partial postback the county dropdown, which fills in the zip codes.
//  4. Postback the zip code form, the response is the first results page.
//  5. Partial postback the grid's "Next" button until it stops rendering.
//
// Every request has to echo the hidden tokens (see package tokens) of the
// response right before it, so nothing here can be done out of order or in
// parallel.
package hcr

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"buildingsearch/internal/components/assert"
	"buildingsearch/internal/components/chrono"
	"buildingsearch/internal/components/telemetry"
	"buildingsearch/internal/scrapers/hcr/grid"
	"buildingsearch/internal/scrapers/hcr/tokens"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("buildingsearch.scrapers.hcr")

const (
	report_driver_establish_session = "driver.establish-session"
	report_driver_select_county     = "driver.select-county"
	report_driver_submit_zip        = "driver.submit-zip"
	report_driver_advance_page      = "driver.advance-page"
	report_driver_exchange          = "driver.exchange"
)

// RetryPolicy is how many times a request is repeated when the portal shows
// one of its known transient failures. Both default to one, which is what
// has been enough against the live portal so far.
type RetryPolicy struct {
	// Redirects covers exchanges that went through more than one redirect,
	// or partial responses that only carry a redirect or error segment.
	Redirects int
	// MalformedPages covers next page responses without a results grid.
	MalformedPages int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Redirects: 1, MalformedPages: 1}
}

type DriverOptions struct {
	Client ClientOptions
	Retry  RetryPolicy
}

// Driver owns one portal session and walks it through a single county/zip
// query. It is not safe for concurrent use.
type Driver struct {
	client *client
	delay  chrono.DelayAPI
	tel    telemetry.API
	retry  RetryPolicy

	state     State
	sessionId string
	snapshot  tokens.Snapshot
	// set when the first results page had no usable tokens, paging needs them
	snapshotErr error
	county      string
	zip         string
	lastBody    string
}

func NewDriver(opts DriverOptions, delay chrono.DelayAPI, tel telemetry.API) (*Driver, error) {
	assert.NotNil(delay)
	assert.NotNil(tel)
	assert.NonNegative(opts.Retry.Redirects)
	assert.NonNegative(opts.Retry.MalformedPages)

	tel = telemetry.NewScopedAPI("hcr", tel)

	c, err := newClient(opts.Client, tel)
	if err != nil {
		return nil, err
	}

	return &Driver{
		client: c,
		delay:  delay,
		tel:    tel,
		retry:  opts.Retry,
		state:  StateUninitialized,
	}, nil
}

// State returns where the driver is in the workflow.
func (d *Driver) State() State {
	return d.state
}

// SessionId returns the portal session id, empty before EstablishSession.
func (d *Driver) SessionId() string {
	return d.sessionId
}

// Close ends the workflow and releases idle connections.
func (d *Driver) Close() error {
	d.state = StateDone
	d.client.close()
	return nil
}

func (d *Driver) expect(op string, allowed ...State) error {
	if slices.Contains(allowed, d.state) {
		return nil
	}
	return &StateError{Op: op, State: d.state}
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// partialSymptom looks for the failure segments the portal sometimes puts in
// a partial response instead of the panels that were asked for.
func partialSymptom(body string) string {
	segments, err := tokens.ParseDelta(body)
	if err != nil {
		return ""
	}
	if redirect, ok := tokens.FindSegment(segments, tokens.DeltaPageRedirect); ok {
		return fmt.Sprintf("partial response redirects to %q", redirect.Content)
	}
	if failure, ok := tokens.FindSegment(segments, tokens.DeltaError); ok {
		return fmt.Sprintf("partial response carries error %q", failure.Content)
	}
	return ""
}

// exchange performs one request, repeating it unchanged while the portal
// shows a transient symptom and the retry budget allows it.
func (d *Driver) exchange(ctx context.Context, step, method string, form map[string]string, partial bool) (response, error) {
	for attempt := 1; ; attempt++ {
		var res response
		var err error
		switch method {
		case "GET":
			res, err = d.client.get(ctx)
		default:
			res, err = d.client.post(ctx, form, partial)
		}
		if err != nil {
			d.tel.ReportBroken(report_driver_exchange, fmt.Errorf("%s: %w", step, err))
			return response{}, fmt.Errorf("%s: %w", step, err)
		}
		if res.status >= 400 {
			err := &ProtocolShapeError{
				Step:     step,
				Expected: "a successful response",
				Err:      fmt.Errorf("status %d", res.status),
			}
			d.tel.ReportBroken(report_driver_exchange, err)
			return response{}, err
		}

		symptom := ""
		switch {
		case res.redirects > 1:
			symptom = fmt.Sprintf("redirected %d times", res.redirects)
		case partial:
			symptom = partialSymptom(res.body)
		}
		if symptom == "" {
			return res, nil
		}

		if attempt > d.retry.Redirects {
			err := &TransientServerError{
				Step:     step,
				Symptom:  symptom,
				Attempts: attempt,
			}
			d.tel.ReportBroken(report_driver_exchange, err)
			return response{}, err
		}
		d.tel.ReportWarning(report_driver_exchange, step, symptom, attempt)
	}
}

// EstablishSession opens a portal session and switches the search form to
// zip code mode.
func (d *Driver) EstablishSession(ctx context.Context) (err error) {
	if err := d.expect("establish session", StateUninitialized); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "EstablishSession")
	defer func() { endSpan(span, err) }()

	const step = "establish session"

	res, err := d.exchange(ctx, step, "GET", nil, false)
	if err != nil {
		return err
	}

	sessionId := ""
	for _, cookie := range res.cookies {
		if cookie.Name == sessionCookie && cookie.Value != "" {
			sessionId = cookie.Value
		}
	}
	if sessionId == "" {
		err := &ProtocolShapeError{Step: step, Expected: sessionCookie + " cookie"}
		d.tel.ReportBroken(report_driver_establish_session, err)
		return err
	}
	d.sessionId = sessionId
	d.client.setSessionId(sessionId)
	d.tel.ReportDebug("session established", sessionId)

	snapshot, err := tokens.FromHTML(res.body)
	if err != nil {
		err := &ProtocolShapeError{Step: step, Expected: "landing page tokens", Err: err}
		d.tel.ReportBroken(report_driver_establish_session, err)
		return err
	}

	err = d.delay.Delay(ctx)
	if err != nil {
		return err
	}
	err = d.delay.Delay(ctx)
	if err != nil {
		return err
	}

	res, err = d.exchange(ctx, "select zip search", "POST", searchModeForm(snapshot), false)
	if err != nil {
		return err
	}
	snapshot, err = tokens.FromHTML(res.body)
	if err != nil {
		err := &ProtocolShapeError{Step: "select zip search", Expected: "zip search form tokens", Err: err}
		d.tel.ReportBroken(report_driver_establish_session, err)
		return err
	}

	d.snapshot = snapshot
	d.state = StateSessionEstablished
	return nil
}

// SelectCounty picks the county in the search form.
func (d *Driver) SelectCounty(ctx context.Context, county string) (err error) {
	if err := d.expect("select county", StateSessionEstablished); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "SelectCounty")
	span.SetAttributes(attribute.String("county", county))
	defer func() { endSpan(span, err) }()

	const step = "select county"
	d.tel.ReportDebug("selecting county", county)

	res, err := d.exchange(ctx, step, "POST", countyForm(d.snapshot, county), true)
	if err != nil {
		return err
	}
	snapshot, err := tokens.FromPartial(res.body)
	if err != nil {
		err := &ProtocolShapeError{Step: step, Expected: "county partial response", Err: err}
		d.tel.ReportBroken(report_driver_select_county, err)
		return err
	}
	if snapshot.ViewState == "" {
		d.tel.ReportWarning(report_driver_select_county, "partial response carried no viewstate", county)
	}

	d.snapshot = snapshot
	d.county = county
	d.state = StateCountySelected
	return nil
}

// SubmitZip submits the zip code search and returns the first results page,
// which may be the zero results page.
func (d *Driver) SubmitZip(ctx context.Context, zip string) (body string, err error) {
	if err := d.expect("submit zip", StateCountySelected); err != nil {
		return "", err
	}

	ctx, span := startSpan(ctx, "SubmitZip")
	span.SetAttributes(attribute.String("zip", zip))
	defer func() { endSpan(span, err) }()

	const step = "submit zip"
	d.tel.ReportDebug("getting initial results", d.county, zip)

	res, err := d.exchange(ctx, step, "POST", zipForm(d.snapshot, d.county, zip), false)
	if err != nil {
		return "", err
	}

	d.snapshot, d.snapshotErr = tokens.FromHTML(res.body)
	if d.snapshotErr != nil && grid.HasNextPage(res.body) {
		d.tel.ReportWarning(report_driver_submit_zip, d.snapshotErr)
	}

	d.zip = zip
	d.lastBody = res.body
	d.state = StateResultsLoaded
	return res.body, nil
}

// HasNextPage reports whether the last response rendered a next page button.
func (d *Driver) HasNextPage() bool {
	switch d.state {
	case StateResultsLoaded, StatePaging:
		return grid.HasNextPage(d.lastBody)
	}
	return false
}

// AdvancePage requests the next results page and returns its rows.
func (d *Driver) AdvancePage(ctx context.Context) (rows []grid.Row, err error) {
	if err := d.expect("advance page", StateResultsLoaded, StatePaging); err != nil {
		return nil, err
	}
	if !d.HasNextPage() {
		return nil, &StateError{Op: "advance page without a next page", State: d.state}
	}
	if d.snapshotErr != nil {
		return nil, &ProtocolShapeError{
			Step:     "advance page",
			Expected: "results page tokens",
			Err:      d.snapshotErr,
		}
	}

	ctx, span := startSpan(ctx, "AdvancePage")
	defer func() { endSpan(span, err) }()

	const step = "advance page"

	err = d.delay.Delay(ctx)
	if err != nil {
		return nil, err
	}

	form := nextPageForm(d.snapshot, d.county, d.zip)
	for attempt := 1; ; attempt++ {
		res, err := d.exchange(ctx, step, "POST", form, true)
		if err != nil {
			return nil, err
		}

		seq, err := grid.ExtractRows(tokens.SynthesizeMarkup(res.body))
		var missing *grid.MissingTableError
		if errors.As(err, &missing) {
			if attempt > d.retry.MalformedPages {
				err := &TransientServerError{
					Step:     step,
					Symptom:  "response has no results grid",
					Attempts: attempt,
					Err:      missing,
				}
				d.tel.ReportBroken(report_driver_advance_page, err)
				return nil, err
			}
			d.tel.ReportWarning(report_driver_advance_page, "missing results grid, retrying", attempt)
			continue
		}
		if err != nil {
			err := &ProtocolShapeError{Step: step, Expected: "partial results page", Err: err}
			d.tel.ReportBroken(report_driver_advance_page, err)
			return nil, err
		}

		snapshot, err := tokens.FromPartial(res.body)
		if err != nil {
			err := &ProtocolShapeError{Step: step, Expected: "partial results tokens", Err: err}
			d.tel.ReportBroken(report_driver_advance_page, err)
			return nil, err
		}

		rows = slices.Collect(seq)
		d.snapshot = snapshot
		d.lastBody = res.body
		d.state = StatePaging
		if !grid.HasNextPage(res.body) {
			d.state = StateDone
		}

		span.SetAttributes(attribute.Int("rows", len(rows)))
		return rows, nil
	}
}
