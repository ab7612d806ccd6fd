package hcr

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakePortal imitates the postback contract of the building search portal.
// It checks that every postback echoes the tokens of the previous response
// and answers stale tokens the way the real portal does, with a redirect
// chain to nowhere.
type fakePortal struct {
	t      testing.TB
	server *httptest.Server

	mu sync.Mutex

	pages       int
	rowsPerPage int
	noCookie    bool
	// landing sets the session cookie on a redirect to default.aspx
	landingRedirect bool
	failStatus      map[string]int
	// number of times a step answers with a redirect chain before behaving
	redirects map[string]int
	// number of times a step answers with a partial pageRedirect segment
	partialRedirects map[string]int
	// number of times a next page answers without a grid
	malformedPages int

	viewstate   string
	currentPage int
	county      string
	requests    map[string]int
	auxMissing  bool
	badCookie   bool
	ajaxMissing bool
}

const (
	stepLanding = "landing"
	stepMode    = "mode"
	stepCounty  = "county"
	stepZip     = "zip"
	stepNext    = "next"
	stepUnknown = "unknown"

	testSessionId = "q1w2e3r4t5y6u7i8o9p0"
)

func newFakePortal(t testing.TB, pages, rowsPerPage int) *fakePortal {
	p := &fakePortal{
		t:                t,
		pages:            pages,
		rowsPerPage:      rowsPerPage,
		failStatus:       map[string]int{},
		redirects:        map[string]int{},
		partialRedirects: map[string]int{},
		requests:         map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/buildingsearch/", p.handle)
	mux.HandleFunc("/hop1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hop2", http.StatusFound)
	})
	mux.HandleFunc("/hop2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Object moved</body></html>"))
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) baseUrl() string {
	return p.server.URL + "/buildingsearch/"
}

func (p *fakePortal) count(step string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[step]
}

func tokenInputs(viewstate string) string {
	return fmt.Sprintf(`<div class="aspNetHidden">
<input type="hidden" name="__EVENTTARGET" id="__EVENTTARGET" value="" />
<input type="hidden" name="__EVENTARGUMENT" id="__EVENTARGUMENT" value="" />
<input type="hidden" name="__LASTFOCUS" id="__LASTFOCUS" value="" />
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="%s" />
<input type="hidden" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" value="CA0B0334" />
<input type="hidden" name="__VIEWSTATEENCRYPTED" id="__VIEWSTATEENCRYPTED" value="" />
<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="ev-%s" />
</div>`, viewstate, viewstate)
}

func fullPage(viewstate, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><body><form method="post" action="./default.aspx" id="form1">
%s
%s
</form></body></html>`, tokenInputs(viewstate), content)
}

func partialPayload(viewstate, panelId, panel string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "1|#||4|%d|updatePanel|%s|%s|", len(panel), panelId, panel)
	fmt.Fprintf(&out, "%d|hiddenField|__EVENTTARGET||", 0)
	fmt.Fprintf(&out, "%d|hiddenField|__VIEWSTATE|%s|", len(viewstate), viewstate)
	fmt.Fprintf(&out, "%d|hiddenField|__VIEWSTATEGENERATOR|%s|", len("CA0B0334"), "CA0B0334")
	ev := "ev-" + viewstate
	fmt.Fprintf(&out, "%d|hiddenField|__EVENTVALIDATION|%s|", len(ev), ev)
	out.WriteString("0|asyncPostBackControlIDs|||")
	return out.String()
}

func pageRow(page, i int) []string {
	return []string{
		fmt.Sprintf("%d%02d", page, i),
		fmt.Sprintf("%d", i*2),
		"MAIN ST",
		"NEW YORK",
		"10001",
		"NEW YORK",
		fmt.Sprintf("%d", page+i),
	}
}

func (p *fakePortal) total() int {
	return p.pages * p.rowsPerPage
}

func (p *fakePortal) grid(page int) string {
	var out strings.Builder
	out.WriteString(`<table class="grid" id="ctl00_ContentPlaceHolder1_buildingsGridView">`)
	out.WriteString(`<tr><th>Bldg ID</th><th>No</th><th>Street</th><th>City</th><th>Zip</th><th>County</th><th>Units</th></tr>`)
	for i := 1; i <= p.rowsPerPage; i++ {
		out.WriteString("<tr>")
		for _, cell := range pageRow(page, i) {
			fmt.Fprintf(&out, "<td>\n\t%s  </td>", cell)
		}
		out.WriteString("</tr>")
	}
	first := (page-1)*p.rowsPerPage + 1
	last := page * p.rowsPerPage
	fmt.Fprintf(&out, `<tr><td colspan="7">Displaying buildings %d - %d of %d</td></tr>`, first, last, p.total())
	out.WriteString(`<tr><td colspan="7"><table><tr><td>`)
	if page < p.pages {
		out.WriteString(`<input type="submit" name="ctl00$ContentPlaceHolder1$buildingsGridView$ctl54$btnNext" value="Next" />`)
	}
	out.WriteString(`</td></tr></table></td></tr></table>`)
	return out.String()
}

func redirectChain(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/hop1", http.StatusFound)
}

func (p *fakePortal) classify(r *http.Request) string {
	if r.Method == http.MethodGet {
		return stepLanding
	}
	form := r.PostForm
	switch {
	case form.Get("__EVENTTARGET") == controlZipCodeSearchLink:
		return stepMode
	case form.Get("__EVENTTARGET") == controlCountyListDropDown:
		return stepCounty
	case form.Get(controlSubmitZipCode) == "Submit":
		return stepZip
	case form.Get(controlNextPage) == "Next":
		return stepNext
	}
	return stepUnknown
}

func (p *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	step := p.classify(r)
	p.requests[step]++

	if status, ok := p.failStatus[step]; ok {
		http.Error(w, "Server Error in '/buildingsearch' Application.", status)
		return
	}
	if p.redirects[step] > 0 {
		p.redirects[step]--
		redirectChain(w, r)
		return
	}

	if step == stepLanding && p.landingRedirect && !strings.HasSuffix(r.URL.Path, landingPage) {
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: testSessionId, Path: "/", HttpOnly: true})
		http.Redirect(w, r, r.URL.Path+landingPage, http.StatusFound)
		return
	}

	if step != stepLanding {
		if r.Header.Get("Cookie") != sessionCookie+"="+testSessionId {
			p.badCookie = true
		}
		for _, aux := range []string{"__EVENTARGUMENT", "__LASTFOCUS"} {
			if _, ok := r.PostForm[aux]; !ok || r.PostForm.Get(aux) != "" {
				p.auxMissing = true
			}
		}
		if r.PostForm.Get("__VIEWSTATE") != p.viewstate ||
			r.PostForm.Get("__EVENTVALIDATION") != "ev-"+p.viewstate {
			// stale tokens
			redirectChain(w, r)
			return
		}
	}

	partial := step == stepCounty || step == stepNext
	if partial {
		if r.Header.Get("X-MicrosoftAjax") != "Delta=true" || r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			p.ajaxMissing = true
		}
		if p.partialRedirects[step] > 0 {
			p.partialRedirects[step]--
			target := "/buildingsearch/Error.aspx"
			fmt.Fprintf(w, "%d|pageRedirect||%s|", len(target), target)
			return
		}
	}

	switch step {
	case stepLanding:
		if !p.noCookie && !p.landingRedirect {
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: testSessionId, Path: "/", HttpOnly: true})
		}
		p.viewstate = "landing"
		w.Write([]byte(fullPage(p.viewstate, `<a id="ctl00_ContentPlaceHolder1_zipCodeSearchLinkButton">Search by Zip Code</a>`)))
	case stepMode:
		p.viewstate = "zipmode"
		w.Write([]byte(fullPage(p.viewstate, `<select name="ctl00$ContentPlaceHolder1$countyListDropDown"><option>NEW YORK</option></select>`)))
	case stepCounty:
		p.county = r.PostForm.Get(controlCountyListDropDown)
		p.viewstate = "county-" + strings.ReplaceAll(p.county, " ", "_")
		panel := `<select name="ctl00$ContentPlaceHolder1$zipCodesDropDown"><option>10001</option><option>00000</option></select>`
		w.Write([]byte(partialPayload(p.viewstate, "ctl00_ContentPlaceHolder1_zipUpdatePanel", panel)))
	case stepZip:
		if r.PostForm.Get(controlCountyListDropDown) != p.county {
			http.Error(w, "county changed", http.StatusBadRequest)
			return
		}
		p.currentPage = 1
		p.viewstate = "page-1"
		if r.PostForm.Get(controlZipCodesDropDown) == "00000" {
			w.Write([]byte(fullPage(p.viewstate, `<span>0 results found</span>`)))
			return
		}
		w.Write([]byte(fullPage(p.viewstate, p.grid(1))))
	case stepNext:
		if r.PostForm.Get(controlScriptManager) != controlGridUpdatePanel+"|"+controlNextPage {
			http.Error(w, "bad script manager target", http.StatusBadRequest)
			return
		}
		if p.malformedPages > 0 {
			p.malformedPages--
			w.Write([]byte("1|#||4|0|updatePanel|ctl00_ContentPlaceHolder1_gridUpdatePanel||"))
			return
		}
		p.currentPage++
		p.viewstate = fmt.Sprintf("page-%d", p.currentPage)
		w.Write([]byte(partialPayload(p.viewstate, "ctl00_ContentPlaceHolder1_gridUpdatePanel", p.grid(p.currentPage))))
	default:
		http.Error(w, "unknown postback", http.StatusBadRequest)
	}
}
