package hcr

// State is where a Driver is in the portal's postback workflow.
type State int

const (
	StateUninitialized State = iota
	StateSessionEstablished
	StateCountySelected
	StateResultsLoaded
	StatePaging
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSessionEstablished:
		return "session-established"
	case StateCountySelected:
		return "county-selected"
	case StateResultsLoaded:
		return "results-loaded"
	case StatePaging:
		return "paging"
	case StateDone:
		return "done"
	}
	return "unknown"
}
