package pipeline

import "fmt"

// State tracks a book run through its stages. Transitions are linear:
// Init, Extracting, Fetching, Assembling, then Done, with Aborted reachable
// from any stage.
type State int

const (
	StateInit State = iota
	StateExtracting
	StateFetching
	StateAssembling
	StateDone
	StateAborted
)

// String returns the lowercase stage name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateExtracting:
		return "extracting"
	case StateFetching:
		return "fetching"
	case StateAssembling:
		return "assembling"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its stage name in reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a stage name back into a State.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "init":
		*s = StateInit
	case "extracting":
		*s = StateExtracting
	case "fetching":
		*s = StateFetching
	case "assembling":
		*s = StateAssembling
	case "done":
		*s = StateDone
	case "aborted":
		*s = StateAborted
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}
