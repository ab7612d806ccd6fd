package hcr

import (
	"buildingsearch/internal/scrapers/hcr/tokens"
)

const (
	DefaultBaseUrl   = "https://apps.hcr.ny.gov/buildingsearch/"
	DefaultUserAgent = "Mozilla (scraper bike) Gecko Chrome Safari"

	sessionCookie = "ASP.NET_SessionId"
	landingPage   = "default.aspx"
)

// form field names the portal expects verbatim
const (
	fieldEventTarget = "__EVENTTARGET"
	fieldAsyncPost   = "__ASYNCPOST"

	controlScriptManager      = "ctl00$ContentPlaceHolder1$ScriptManager1"
	controlGridUpdatePanel    = "ctl00$ContentPlaceHolder1$gridUpdatePanel"
	controlZipCodeSearchLink  = "ctl00$ContentPlaceHolder1$zipCodeSearchLinkButton"
	controlCountyDropDown     = "ctl00$ContentPlaceHolder1$countyDropDown"
	controlCountyListDropDown = "ctl00$ContentPlaceHolder1$countyListDropDown"
	controlZipCodesDropDown   = "ctl00$ContentPlaceHolder1$zipCodesDropDown"
	controlSubmitZipCode      = "ctl00$ContentPlaceHolder1$submitZipCodeButton"
	controlNextPage           = "ctl00$ContentPlaceHolder1$buildingsGridView$ctl54$btnNext"
)

var ajaxHeaders = map[string]string{
	"X-MicrosoftAjax":  "Delta=true",
	"X-Requested-With": "XMLHttpRequest",
}

func newForm(snapshot tokens.Snapshot, fields map[string]string) map[string]string {
	form := make(map[string]string, len(fields)+6)
	snapshot.Apply(form)
	for k, v := range fields {
		form[k] = v
	}
	return form
}

// searchModeForm clicks the "search by zip code" link.
func searchModeForm(snapshot tokens.Snapshot) map[string]string {
	return newForm(snapshot, map[string]string{
		fieldEventTarget:      controlZipCodeSearchLink,
		controlCountyDropDown: "",
	})
}

// countyForm picks a county in the dropdown, which makes the portal fill in
// the zip code dropdown through a partial postback.
func countyForm(snapshot tokens.Snapshot, county string) map[string]string {
	return newForm(snapshot, map[string]string{
		controlCountyListDropDown: county,
		controlZipCodesDropDown:   "",
		fieldEventTarget:          controlCountyListDropDown,
		fieldAsyncPost:            "true",
		controlScriptManager:      controlScriptManager + "|" + controlCountyListDropDown,
	})
}

func zipForm(snapshot tokens.Snapshot, county, zip string) map[string]string {
	return newForm(snapshot, map[string]string{
		controlCountyListDropDown: county,
		controlZipCodesDropDown:   zip,
		fieldEventTarget:          "",
		controlSubmitZipCode:      "Submit",
	})
}

func nextPageForm(snapshot tokens.Snapshot, county, zip string) map[string]string {
	return newForm(snapshot, map[string]string{
		controlScriptManager:      controlGridUpdatePanel + "|" + controlNextPage,
		controlNextPage:           "Next",
		fieldAsyncPost:            "true",
		controlCountyListDropDown: county,
		controlZipCodesDropDown:   zip,
		fieldEventTarget:          "",
	})
}
