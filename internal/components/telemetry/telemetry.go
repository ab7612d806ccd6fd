// Package telemetry is the reporting surface shared by every component.
// Components never log directly, they report through an API so tests can
// swap in a Recorder and assert on what was reported.
package telemetry

// API reports component health.
//
// Ids name the component that broke, not the line that broke: a failed
// county postback in the driver is "driver.select-county". Ids are lower
// case, underscores separate words of a component and a dash separates a
// component from its method. Anything more specific goes in params.
type API interface {
	// ReportBroken reports a failure that needs someone to look at it, for
	// example the portal answering with a page shape the scraper does not
	// know.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something recoverable that is still worth
	// investigating if it keeps happening, like a retried redirect loop.
	ReportWarning(id string, params ...any)
	// ReportDebug is only shown when running verbosely.
	ReportDebug(msg string, params ...any)
	// ReportCount records the current value of a counter, values are points
	// over time and must not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, the way a sub logger
// prefixes its lines.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return s.namespace + "." + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
