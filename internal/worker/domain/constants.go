package domain

// State is the lifecycle state of a scheduled unit of work
type State string

// Work states
const (
	StateScheduled State = "scheduled"
	StatePolling   State = "polling"
	StateRetrying  State = "retrying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further ticks will run in this state
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Outcome is what a handler reports after one tick
type Outcome int

const (
	// Continue means the work is not finished; tick again after the interval
	Continue Outcome = iota
	// Retry means the tick failed transiently; tick again after backoff
	Retry
	// Success ends the work successfully
	Success
	// Failure ends the work unsuccessfully
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}
