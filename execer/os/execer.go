package os

import (
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/execer"
)

// DefaultStopTimeout is how long Abort waits for SIGTERM to take effect before SIGKILL.
const DefaultStopTimeout = 2 * time.Second

// Implements execer.Execer for processes on this machine.
type osExecer struct {
	stopTimeout time.Duration
	stat        stats.StatsReceiver
}

// NewExecer returns an execer that runs each command in its own process group.
// A zero stopTimeout means DefaultStopTimeout, a nil stat discards metrics.
func NewExecer(stopTimeout time.Duration, stat stats.StatsReceiver) execer.Execer {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &osExecer{stopTimeout: stopTimeout, stat: stat}
}

// Start a command and return a *process wrapper for it.
func (e *osExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, rcerrors.NewProcessError(rcerrors.FailedToStart, "", errors.New("no command specified"))
	}
	program := command.Argv[0]

	cmd := exec.Command(program, command.Argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = buildEnv(command.EnvVars, command.ClearEnv)

	// Sets pgid of all child processes to cmd's pid
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, stderr := command.Stdout, command.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	// Use pipes so all output is drained before cmd.Wait() releases the process.
	stdErrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, rcerrors.ClassifyStartError(program, err)
	}
	stdOutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, rcerrors.ClassifyStartError(program, err)
	}

	if err := cmd.Start(); err != nil {
		e.stat.Counter(stats.ProcessStartFailureCounter).Inc(1)
		log.WithFields(
			log.Fields{
				"argv":       command.Argv,
				"runControl": command.RunControlID,
				"worker":     command.WorkerID,
				"err":        err,
			}).Info("Failed to start process")
		return nil, rcerrors.ClassifyStartError(program, err)
	}
	e.stat.Counter(stats.ProcessStartedCounter).Inc(1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(stderr, stdErrPipe)
	}()
	go func() {
		defer wg.Done()
		io.Copy(stdout, stdOutPipe)
	}()

	stopTimeout := command.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = e.stopTimeout
	}
	p := newProcess(cmd, &wg, []io.Closer{stdOutPipe, stdErrPipe}, stopTimeout, e.stat, command.LogTags)
	log.WithFields(
		log.Fields{
			"pid":        p.Pid(),
			"argv":       command.Argv,
			"runControl": command.RunControlID,
			"worker":     command.WorkerID,
		}).Debug("Started process")
	return p, nil
}

// buildEnv layers vars over the parent environment, or replaces it when clear is set.
// Keys are applied in sorted order so the result is deterministic.
func buildEnv(vars map[string]string, clear bool) []string {
	var env []string
	if !clear {
		env = os.Environ()
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}
