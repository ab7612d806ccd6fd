package hcr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"buildingsearch/internal/components/restyutil"
	"buildingsearch/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const maxRedirects = 10

var errRedirectLoop = errors.New("redirect loop")

type ClientOptions struct {
	// BaseUrl is the search portal root, defaults to DefaultBaseUrl.
	BaseUrl   string
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond caps the request rate, 0 means no limit.
	RequestsPerSecond float64
	CloudflareBypass  bool
	// Dump receives every exchange when set.
	Dump restyutil.Output
}

type client struct {
	http    *resty.Client
	baseUrl string
}

type response struct {
	body      string
	status    int
	redirects int
	cookies   []*http.Cookie
}

type redirectTraceKeyType int

var redirectTraceKey redirectTraceKeyType

// redirectTrace follows one exchange through its redirects. The jar is
// disabled so cookies set on intermediate hops are only seen here.
type redirectTrace struct {
	count   int
	cookies []*http.Cookie
}

func traceRedirects(req *http.Request, via []*http.Request) error {
	if trace, ok := req.Context().Value(redirectTraceKey).(*redirectTrace); ok {
		trace.count = len(via)
		if req.Response != nil {
			trace.cookies = append(trace.cookies, req.Response.Cookies()...)
		}
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects: %w", len(via), errRedirectLoop)
	}
	return nil
}

func newClient(opts ClientOptions, tel telemetry.API) (*client, error) {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	if !strings.HasSuffix(baseUrl, "/") {
		baseUrl += "/"
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseUrl)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}

	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	// the session cookie is installed by hand as a header once it is known
	httpClient.SetCookieJar(nil)
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(traceRedirects))
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeaders(map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "application/x-www-form-urlencoded; charset=utf-8",
		"Origin":       fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host),
		"Accept":       "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Referer":      baseUrl + landingPage,
	})

	if opts.RequestsPerSecond > 0 {
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.DumpExchanges(httpClient, opts.Dump)

	return &client{http: httpClient, baseUrl: baseUrl}, nil
}

func (c *client) setSessionId(id string) {
	c.http.SetHeader("Cookie", fmt.Sprintf("%s=%s", sessionCookie, id))
}

func (c *client) close() {
	c.http.GetClient().CloseIdleConnections()
}

func (c *client) do(ctx context.Context, method string, form map[string]string, partial bool) (response, error) {
	trace := &redirectTrace{}
	ctx = context.WithValue(ctx, redirectTraceKey, trace)

	req := c.http.R().SetContext(ctx)
	if form != nil {
		req.SetFormData(form)
	}
	if partial {
		req.SetHeaders(ajaxHeaders)
	}

	res, err := req.Execute(method, c.baseUrl)
	if errors.Is(err, errRedirectLoop) {
		return response{redirects: trace.count, cookies: trace.cookies}, nil
	}
	if err != nil {
		return response{}, err
	}

	return response{
		body:      res.String(),
		status:    res.StatusCode(),
		redirects: trace.count,
		// hops first so the final response wins
		cookies: append(trace.cookies, res.Cookies()...),
	}, nil
}

func (c *client) get(ctx context.Context) (response, error) {
	return c.do(ctx, resty.MethodGet, nil, false)
}

func (c *client) post(ctx context.Context, form map[string]string, partial bool) (response, error) {
	return c.do(ctx, resty.MethodPost, form, partial)
}
