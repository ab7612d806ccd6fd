package tokens

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FromHTML reads the token fields out of a full page.
func FromHTML(markup string) (Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse html: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument is FromHTML for an already parsed document.
func FromDocument(doc *goquery.Document) (Snapshot, error) {
	var snapshot Snapshot
	for _, field := range tokenFields {
		input := doc.Find(fmt.Sprintf(`[name="%s"]`, field)).First()
		if input.Length() == 0 {
			return Snapshot{}, &MissingFieldError{Field: field}
		}
		// __VIEWSTATEENCRYPTED is rendered with an empty value
		snapshot.set(field, input.AttrOr("value", ""))
	}
	return snapshot, nil
}

var partialFieldRegex = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(tokenFields))
	for _, field := range tokenFields {
		out[field] = regexp.MustCompile(regexp.QuoteMeta(field) + `\|([^|]*)\|`)
	}
	return out
}()

func partialValues(payload string) map[string]string {
	values := make(map[string]string, len(tokenFields))
	for _, field := range tokenFields {
		groups := partialFieldRegex[field].FindStringSubmatch(payload)
		if len(groups) < 2 {
			// the portal leaves out fields that did not change
			values[field] = ""
			continue
		}
		values[field] = groups[1]
	}
	return values
}

// SynthesizeMarkup turns a partial postback payload into markup: the payload
// text followed by one hidden input per token field. Both response shapes
// can then be read the same way.
func SynthesizeMarkup(payload string) string {
	values := partialValues(payload)

	var out strings.Builder
	out.WriteString(payload)
	out.WriteString(" ")
	for _, field := range tokenFields {
		fmt.Fprintf(
			&out,
			"<input type=\"hidden\" value=\"%s\" name=\"%s\" />\n",
			html.EscapeString(values[field]),
			field,
		)
	}
	return out.String()
}

// FromPartial reads the token fields out of a partial postback payload. A
// field missing from the payload comes back empty instead of failing.
func FromPartial(payload string) (Snapshot, error) {
	return FromHTML(SynthesizeMarkup(payload))
}
