package execer

import (
	"io"
	"time"
)

// Execer lets you run one process. It differs from a run control in that it
// knows nothing about workers, devices or run modes. It's just a way to run a
// process (locally, on a remote device, or faked) at the level of os/exec.
type Execer interface {
	Exec(command Command) (Process, error)
}

type Command struct {
	Argv []string

	// Key-value pairs for environment variables, added to the inherited environment.
	EnvVars map[string]string

	// If set, EnvVars is the complete environment.
	ClearEnv bool

	// Working directory. Empty means the execer's default.
	Dir string

	Stdout io.Writer
	Stderr io.Writer

	// How long Abort waits after the graceful termination request before killing.
	// Zero means the execer's default.
	StopTimeout time.Duration

	LogTags
}

// LogTags identify the run a process belongs to in log entries.
type LogTags struct {
	RunControlID string
	WorkerID     string
}

type ProcessState int

const (
	UNKNOWN ProcessState = iota
	RUNNING
	COMPLETE
	FAILED
)

func (s ProcessState) IsDone() bool {
	return s == COMPLETE || s == FAILED
}

func (s ProcessState) String() string {
	switch s {
	case RUNNING:
		return "RUNNING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type Process interface {
	// Pid of the process, or 0 if the execer cannot tell (ex: remote processes).
	Pid() int

	// Wait blocks until the process is done and returns its final status.
	Wait() ProcessStatus

	// Abort asks the process to terminate, kills it if it hasn't after the stop
	// timeout, and returns its final status. Abort always returns.
	Abort() ProcessStatus
}

type ProcessStatus struct {
	State ProcessState

	// Only valid if State == COMPLETE and !Crashed
	ExitCode int

	// The process died from a signal instead of exiting.
	Crashed bool
	Signal  string

	// The process ended because Abort was called.
	Aborted bool
	// Abort had to escalate to a kill.
	Killed bool

	// Only valid if State == FAILED
	Error string
}
