package batch

// State is the lifecycle state of an orchestrator run
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the state ends a run
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}
