package supervisor

// State is the lifecycle stage of a Supervisor.
type State int

const (
	// StateIdle is the initial state before Run.
	StateIdle State = iota

	// StateRunning indicates the service is started and the command loop is active.
	StateRunning

	// StateStopping indicates a stop request is being carried out.
	StateStopping

	// StateStopped indicates the supervisor has stopped and cannot be restarted.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is a terminal state (stopped).
func (s State) IsTerminal() bool {
	return s == StateStopped
}
