package refactor

// State is a step of an inversion.
type State int

const (
	StateIdle State = iota
	StateAdjusting
	StateCollecting
	StateValidating
	StateMutating
	StateDone
	StateCancelled
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdjusting:
		return "adjusting"
	case StateCollecting:
		return "collecting"
	case StateValidating:
		return "validating"
	case StateMutating:
		return "mutating"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateRejected
}

var transitions = map[State][]State{
	StateIdle:       {StateAdjusting, StateCancelled},
	StateAdjusting:  {StateCollecting, StateCancelled},
	StateCollecting: {StateValidating, StateCancelled},
	StateValidating: {StateMutating, StateRejected, StateCancelled},
	StateMutating:   {StateDone},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Status is the outcome of an inversion reported to the caller.
type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}
