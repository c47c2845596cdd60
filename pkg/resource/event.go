package resource

import "time"

// State is the lifecycle state of a Watch.
type State int

const (
	Idle State = iota
	Connecting
	Live
	RetryWait
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case RetryWait:
		return "retry-wait"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EventKind identifies a transition input.
type EventKind int

const (
	Connected EventKind = iota
	DataReceived
	ErrorReceived
	EndReceived
	RetryScheduled
	CancelRequested
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case DataReceived:
		return "data"
	case ErrorReceived:
		return "error"
	case EndReceived:
		return "end"
	case RetryScheduled:
		return "retry"
	case CancelRequested:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event describes one step of a watch. Delay is set for RetryScheduled and
// Err for ErrorReceived.
type Event struct {
	Resource string
	Kind     EventKind
	State    State
	Delay    time.Duration
	Err      error
}
