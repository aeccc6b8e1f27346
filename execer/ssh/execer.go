// Package ssh runs processes on a remote device over SSH sessions.
// Remote processes have no pid, and are stopped with SSH signal requests.
package ssh

import (
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/execer"
)

// DefaultStopTimeout bounds how long a remote process gets between TERM and KILL.
const DefaultStopTimeout = 2 * time.Second

// Session is the part of *ssh.Session the execer drives.
type Session interface {
	Start(cmd string) error
	Wait() error
	Signal(sig ssh.Signal) error
	Close() error
}

// SessionOpener opens a new session with the given output writers attached.
type SessionOpener func(stdout, stderr io.Writer) (Session, error)

// ClientOpener adapts a connected client.
func ClientOpener(client *ssh.Client) SessionOpener {
	return func(stdout, stderr io.Writer) (Session, error) {
		s, err := client.NewSession()
		if err != nil {
			return nil, err
		}
		s.Stdout, s.Stderr = stdout, stderr
		return s, nil
	}
}

type sshExecer struct {
	open        SessionOpener
	stopTimeout time.Duration
	stat        stats.StatsReceiver
}

func NewExecer(open SessionOpener, stopTimeout time.Duration, stat stats.StatsReceiver) execer.Execer {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &sshExecer{open: open, stopTimeout: stopTimeout, stat: stat}
}

func (e *sshExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, rcerrors.NewProcessError(rcerrors.FailedToStart, "", errors.New("no command specified"))
	}
	program := command.Argv[0]
	stdout, stderr := command.Stdout, command.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	session, err := e.open(stdout, stderr)
	if err != nil {
		e.stat.Counter(stats.ProcessStartFailureCounter).Inc(1)
		return nil, rcerrors.ClassifyStartError(program, errors.Wrap(err, "opening ssh session"))
	}
	line := CommandLine(command)
	if err := session.Start(line); err != nil {
		session.Close()
		e.stat.Counter(stats.ProcessStartFailureCounter).Inc(1)
		return nil, rcerrors.ClassifyStartError(program, err)
	}
	e.stat.Counter(stats.ProcessStartedCounter).Inc(1)

	stopTimeout := command.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = e.stopTimeout
	}
	p := &process{
		session:     session,
		stopTimeout: stopTimeout,
		stat:        e.stat,
		LogTags:     command.LogTags,
		doneCh:      make(chan struct{}),
	}
	log.WithFields(p.fields()).WithField("command", line).Debug("Started remote process")
	go p.wait()
	return p, nil
}

// CommandLine renders command as one POSIX shell line for the remote login shell.
func CommandLine(command execer.Command) string {
	var parts []string
	if command.Dir != "" {
		parts = append(parts, "cd", Quote(command.Dir), "&&")
	}
	parts = append(parts, "exec")
	if len(command.EnvVars) > 0 || command.ClearEnv {
		parts = append(parts, "env")
		if command.ClearEnv {
			parts = append(parts, "-i")
		}
		keys := make([]string, 0, len(command.EnvVars))
		for k := range command.EnvVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, Quote(k+"="+command.EnvVars[k]))
		}
	}
	for _, arg := range command.Argv {
		parts = append(parts, Quote(arg))
	}
	return strings.Join(parts, " ")
}

// Quote single-quotes s unless it only holds characters the shell leaves alone.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

type process struct {
	session     Session
	stopTimeout time.Duration
	stat        stats.StatsReceiver
	execer.LogTags

	doneCh   chan struct{}
	mutex    sync.Mutex
	result   execer.ProcessStatus
	aborting bool
	killed   bool
}

// Pid is unknown for remote processes.
func (p *process) Pid() int {
	return 0
}

func (p *process) Wait() execer.ProcessStatus {
	<-p.doneCh
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.result
}

// Abort sends TERM, then KILL after the stop timeout and drops the session.
func (p *process) Abort() execer.ProcessStatus {
	p.mutex.Lock()
	select {
	case <-p.doneCh:
		p.mutex.Unlock()
		return p.Wait()
	default:
	}
	p.aborting = true
	p.mutex.Unlock()

	if err := p.session.Signal(ssh.SIGTERM); err != nil {
		log.WithFields(p.fields()).WithField("err", err).Info("Error sending TERM to remote process")
	}
	select {
	case <-p.doneCh:
		return p.Wait()
	case <-time.After(p.stopTimeout):
	}

	log.WithFields(p.fields()).Errorf("%v timeout exceeded. Killing remote process.", p.stopTimeout)
	p.mutex.Lock()
	p.killed = true
	p.mutex.Unlock()
	p.stat.Counter(stats.ProcessKilledCounter).Inc(1)
	p.session.Signal(ssh.SIGKILL)
	p.session.Close()

	select {
	case <-p.doneCh:
		return p.Wait()
	case <-time.After(p.stopTimeout):
		return execer.ProcessStatus{
			State:   execer.FAILED,
			Aborted: true,
			Killed:  true,
			Error:   "Aborted (remote process did not acknowledge KILL)",
		}
	}
}

func (p *process) wait() {
	err := p.session.Wait()
	p.session.Close()

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.result = statusFromErr(err)
	p.result.Aborted = p.aborting
	p.result.Killed = p.killed
	log.WithFields(p.fields()).WithField("status", p.result.State).Debug("Finished waiting for remote process")
	close(p.doneCh)
}

func (p *process) fields() log.Fields {
	return log.Fields{
		"runControl": p.RunControlID,
		"worker":     p.WorkerID,
	}
}

func statusFromErr(err error) (result execer.ProcessStatus) {
	switch e := err.(type) {
	case nil:
		result.State = execer.COMPLETE
	case *ssh.ExitError:
		result.State = execer.COMPLETE
		if e.Signal() != "" {
			result.Crashed = true
			result.Signal = e.Signal()
			result.ExitCode = -1
		} else {
			result.ExitCode = e.ExitStatus()
		}
	case *ssh.ExitMissingError:
		result.State = execer.FAILED
		result.Error = "remote process exited without reporting a status"
	default:
		result.State = execer.FAILED
		result.Error = err.Error()
	}
	return result
}
