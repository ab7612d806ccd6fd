package hcr

import (
	"fmt"
)

// ProtocolShapeError means the portal answered with something other than
// what the workflow expects at this step, either the markup changed or the
// session fell out of sync. It is never retried.
type ProtocolShapeError struct {
	Step     string
	Expected string
	Err      error
}

func (e *ProtocolShapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: expected %s", e.Step, e.Expected)
	}
	return fmt.Sprintf("%s: expected %s: %s", e.Step, e.Expected, e.Err.Error())
}

func (e *ProtocolShapeError) Unwrap() error {
	return e.Err
}

// TransientServerError is a server quirk that is usually gone on the next
// identical request, it only surfaces once the retry budget is spent.
type TransientServerError struct {
	Step     string
	Symptom  string
	Attempts int
	Err      error
}

func (e *TransientServerError) Error() string {
	msg := fmt.Sprintf("%s: %s (after %d attempts)", e.Step, e.Symptom, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientServerError) Unwrap() error {
	return e.Err
}

// InputError is a value the caller gave, or the portal reported, that cannot
// be used as is.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// StateError is returned when a driver operation is called out of order.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
