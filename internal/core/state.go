package core

// State is the session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateCapturing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateCapturing:
		return "capturing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Phase is where the render loop is inside a cycle.
type Phase int32

const (
	PhaseWaiting Phase = iota
	PhaseAwaitingMask
	PhaseCompositing
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseAwaitingMask:
		return "awaiting_mask"
	case PhaseCompositing:
		return "compositing"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
