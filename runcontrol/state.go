package runcontrol

// WorkerState is where a single Worker is in its lifecycle.
type WorkerState int

const (
	WorkerInitialized WorkerState = iota
	WorkerStarting
	WorkerRunning
	WorkerStopping
	WorkerDone
)

func (s WorkerState) String() string {
	switch s {
	case WorkerInitialized:
		return "Initialized"
	case WorkerStarting:
		return "Starting"
	case WorkerRunning:
		return "Running"
	case WorkerStopping:
		return "Stopping"
	case WorkerDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// State is where a RunControl is in its lifecycle.
// Running iff every worker is Running or Done, Stopped iff every worker is Done.
type State int

const (
	Initialized State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "Initialized"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// IsAllowedTransition reports whether a RunControl may move from one state to another.
// Disallowed transitions are logged and applied anyway.
func IsAllowedTransition(from, to State) bool {
	switch from {
	case Initialized:
		// Stopping/Stopped: stopped or failed before it ever started.
		return to == Starting || to == Stopping || to == Stopped
	case Starting:
		return to == Running || to == Stopping || to == Stopped
	case Running:
		// Running -> Stopped when every worker finished on its own.
		return to == Stopping || to == Stopped
	case Stopping:
		return to == Stopped
	case Stopped:
		// re-run
		return to == Starting
	}
	return false
}
