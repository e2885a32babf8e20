package sim

// State is the lifecycle stage of a Context. Transitions only move forward;
// Initializing may jump straight to Terminated when initialization fails.
type State uint8

const (
	Uninitialized State = iota
	Initializing
	Running
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
