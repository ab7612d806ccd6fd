package restyutil

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func requestBody(req *resty.Request) string {
	switch {
	case len(req.FormData) > 0:
		return req.FormData.Encode()
	case req.Body != nil:
		return fmt.Sprint(req.Body)
	}
	return "(no body)"
}

// FormatExchange renders a request and its response as plain text, headers
// sorted so dumps of two runs can be diffed.
func FormatExchange(res *resty.Response) string {
	req := res.Request

	finalUrl := req.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL.String()
	}

	var out strings.Builder
	fmt.Fprintf(&out, ">>> %s %s\n", req.Method, req.URL)
	if req.RawRequest != nil {
		writeHeaders(&out, req.RawRequest.Header)
	}
	out.WriteString("\n")
	out.WriteString(requestBody(req))
	out.WriteString("\n\n")

	fmt.Fprintf(&out, "<<< %d %s\n", res.StatusCode(), finalUrl)
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(res.String())
	return out.String()
}
