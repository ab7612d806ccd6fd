package tokens

import "fmt"

// Names of the hidden fields the portal checks on every postback.
const (
	FieldViewState          = "__VIEWSTATE"
	FieldEventValidation    = "__EVENTVALIDATION"
	FieldViewStateGenerator = "__VIEWSTATEGENERATOR"
	FieldViewStateEncrypted = "__VIEWSTATEENCRYPTED"
	FieldEventArgument      = "__EVENTARGUMENT"
	FieldLastFocus          = "__LASTFOCUS"
)

// tokenFields are the fields whose values are issued by the server, in the
// order the portal renders them.
var tokenFields = []string{
	FieldViewState,
	FieldEventValidation,
	FieldViewStateGenerator,
	FieldViewStateEncrypted,
}

// Field is a single form field name/value pair.
type Field struct {
	Name  string
	Value string
}

// Snapshot is the state of the remote form as of the last response. It is
// replaced wholesale after every exchange, never merged.
type Snapshot struct {
	ViewState          string
	EventValidation    string
	ViewStateGenerator string
	ViewStateEncrypted string
}

func (s Snapshot) value(field string) string {
	switch field {
	case FieldViewState:
		return s.ViewState
	case FieldEventValidation:
		return s.EventValidation
	case FieldViewStateGenerator:
		return s.ViewStateGenerator
	case FieldViewStateEncrypted:
		return s.ViewStateEncrypted
	}
	return ""
}

func (s *Snapshot) set(field, value string) {
	switch field {
	case FieldViewState:
		s.ViewState = value
	case FieldEventValidation:
		s.EventValidation = value
	case FieldViewStateGenerator:
		s.ViewStateGenerator = value
	case FieldViewStateEncrypted:
		s.ViewStateEncrypted = value
	default:
		panic(fmt.Sprintf("unknown token field %q", field))
	}
}

// Fields returns every field a postback carries for this snapshot in wire
// order. The event argument and last focus fields are always empty.
func (s Snapshot) Fields() []Field {
	fields := make([]Field, 0, len(tokenFields)+2)
	for _, name := range tokenFields {
		fields = append(fields, Field{Name: name, Value: s.value(name)})
	}
	fields = append(
		fields,
		Field{Name: FieldEventArgument},
		Field{Name: FieldLastFocus},
	)
	return fields
}

// Apply writes the snapshot's fields into a form, overwriting whatever token
// values the form already held.
func (s Snapshot) Apply(form map[string]string) {
	for _, f := range s.Fields() {
		form[f.Name] = f.Value
	}
}

// MissingFieldError means an expected hidden field is not in the markup, the
// page is not the form the caller expected.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing hidden field %s", e.Field)
}
