package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_http_request = "http.request"
	report_http_failed  = "http.failed"
)

type exchangeKeyType int

var exchangeKey exchangeKeyType

// exchange is what the hooks pass to each other through the request context.
type exchange struct {
	id    uint64
	start time.Time
	span  trace.Span
}

// RequestId returns the id InstrumentResty gave the request carried by ctx,
// 0 when the request is not instrumented.
func RequestId(ctx context.Context) uint64 {
	ex, ok := ctx.Value(exchangeKey).(exchange)
	if !ok {
		return 0
	}
	return ex.id
}

// InstrumentResty gives every request of client an id and a span, and
// reports method, url, status and duration once it completes.
func InstrumentResty(client *resty.Client, tel API) {
	tracer := otel.Tracer("buildingsearch.http")
	var ids atomic.Uint64

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, span := tracer.Start(req.Context(), "http "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
		ex := exchange{id: ids.Add(1), start: time.Now(), span: span}
		req.SetContext(context.WithValue(ctx, exchangeKey, ex))
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		ex, ok := res.Request.Context().Value(exchangeKey).(exchange)
		if !ok {
			return nil
		}
		defer ex.span.End()

		ex.span.SetAttributes(
			attribute.String("http.request.method", res.Request.Method),
			attribute.String("url.full", res.Request.URL),
			attribute.Int("http.response.status_code", res.StatusCode()),
			attribute.Int("http.response.body.size", len(res.Body())),
		)
		if res.IsError() {
			ex.span.SetStatus(codes.Error, res.Status())
		}
		tel.ReportDebug(
			report_http_request,
			ex.id,
			res.Request.Method,
			res.Request.URL,
			res.StatusCode(),
			time.Since(ex.start).String(),
		)
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		ex, ok := req.Context().Value(exchangeKey).(exchange)
		if !ok {
			// failed before OnBeforeRequest ran
			tel.ReportBroken(report_http_failed, err, req.Method, req.URL)
			return
		}
		ex.span.RecordError(err)
		ex.span.SetStatus(codes.Error, "request failed")
		ex.span.End()
		tel.ReportBroken(report_http_failed, err, ex.id, req.Method, req.URL, time.Since(ex.start).String())
	})
}
