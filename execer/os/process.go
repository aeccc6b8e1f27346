package os

import (
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/execer"
)

// Implements execer.Process
type process struct {
	cmd         *exec.Cmd
	stopTimeout time.Duration
	stat        stats.StatsReceiver
	execer.LogTags
	// read ends of the output pipes
	pipes []io.Closer

	doneCh chan struct{}
	mutex  sync.Mutex
	result execer.ProcessStatus
	// set by Abort before signalling, so the waiter knows the exit was requested
	aborting bool
	killed   bool
}

func newProcess(cmd *exec.Cmd, wg *sync.WaitGroup, pipes []io.Closer, stopTimeout time.Duration,
	stat stats.StatsReceiver, tags execer.LogTags) *process {
	p := &process{
		cmd:         cmd,
		stopTimeout: stopTimeout,
		stat:        stat,
		LogTags:     tags,
		pipes:       pipes,
		doneCh:      make(chan struct{}),
	}
	go p.wait(wg)
	return p
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait for the process to finish.
// A process that exits has status COMPLETE with its exit code, one that dies from a
// signal is COMPLETE and Crashed. FAILED means the exit status could not be determined.
func (p *process) Wait() execer.ProcessStatus {
	<-p.doneCh
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.result
}

// Attempt to SIGTERM the process group, allowing for graceful exit.
// SIGKILL the group once stopTimeout has passed.
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

	pid := p.Pid()
	fields := p.fields()
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		log.WithFields(fields).WithField("err", err).Error("Error aborting process group via SIGTERM")
	} else {
		log.WithFields(fields).Info("Aborting process via SIGTERM")
	}

	select {
	case <-p.doneCh:
		return p.Wait()
	case <-time.After(p.stopTimeout):
	}

	log.WithFields(fields).Errorf("%v timeout exceeded. Killing process group.", p.stopTimeout)
	p.mutex.Lock()
	p.killed = true
	p.mutex.Unlock()
	p.stat.Counter(stats.ProcessKilledCounter).Inc(1)
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		log.WithFields(fields).WithField("err", err).Error("Error killing process group")
	}

	select {
	case <-p.doneCh:
		return p.Wait()
	case <-time.After(p.stopTimeout):
	}

	// A child that left the group can hold the output pipes open, and the waiter
	// drains output before it reaps. Stop draining.
	log.WithFields(fields).Error("Output still open after SIGKILL. Closing output pipes.")
	for _, pipe := range p.pipes {
		pipe.Close()
	}
	select {
	case <-p.doneCh:
		return p.Wait()
	case <-time.After(p.stopTimeout):
		log.WithFields(fields).Error("Process did not finish after SIGKILL")
		return execer.ProcessStatus{
			State:   execer.FAILED,
			Aborted: true,
			Killed:  true,
			Error:   "Aborted (SIGKILL did not take effect)",
		}
	}
}

// wait drains output then reaps the process exactly once.
func (p *process) wait(wg *sync.WaitGroup) {
	wg.Wait()
	err := p.cmd.Wait()

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.result = statusFromErr(err)
	p.result.Aborted = p.aborting
	p.result.Killed = p.killed
	log.WithFields(p.fields()).WithField("status", p.result.State).Debug("Finished waiting for process")
	close(p.doneCh)
}

func (p *process) fields() log.Fields {
	return log.Fields{
		"pid":        p.cmd.Process.Pid,
		"runControl": p.RunControlID,
		"worker":     p.WorkerID,
	}
}

func statusFromErr(err error) (result execer.ProcessStatus) {
	if err == nil {
		result.State = execer.COMPLETE
		return result
	}
	if err, ok := err.(*exec.ExitError); ok {
		// the command returned an error, if we can get a WaitStatus from the error,
		// we can get the commands exit code
		if status, ok := err.Sys().(syscall.WaitStatus); ok {
			result.State = execer.COMPLETE
			if status.Signaled() {
				result.Crashed = true
				result.Signal = status.Signal().String()
				result.ExitCode = -1
				return result
			}
			result.ExitCode = status.ExitStatus()
			return result
		}
		result.State = execer.FAILED
		result.Error = "Could not find WaitStatus from exiterr.Sys()"
		return result
	}
	result.State = execer.FAILED
	result.Error = err.Error()
	return result
}
