// Package workers holds the stock runcontrol workers and the factories that build them.
package workers

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/execer"
	"github.com/twitter/runctl/runcontrol"
)

const (
	SimpleTargetRunnerKind = "SimpleTargetRunner"
	// ExitStatusKey is the recorded-data key for the execer.ProcessStatus of the
	// last process a SimpleTargetRunner ran.
	ExitStatusKey = "exitStatus"
)

// RunnableModifier adjusts the runnable right before launch, ex: to pass on a
// port another worker recorded.
type RunnableModifier func(w *runcontrol.Worker, r *runcontrol.Runnable)

// SimpleTargetRunner launches the run's runnable as one process on its device,
// forwards the process output, and stops when the process exits.
type SimpleTargetRunner struct {
	stat        stats.StatsReceiver
	stopTimeout time.Duration
	modify      RunnableModifier

	// Everything below belongs to the current start and is only touched on the loop.
	generation    int
	proc          execer.Process
	outputs       []io.Closer
	cancel        context.CancelFunc
	executable    string
	launching     bool
	stopRequested bool
	stopReported  bool
}

// NewSimpleTargetRunner returns a runner. stopTimeout bounds the wait between
// asking the process to terminate and killing it; zero means the execer default.
func NewSimpleTargetRunner(stopTimeout time.Duration, modify RunnableModifier, stat stats.StatsReceiver) *SimpleTargetRunner {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &SimpleTargetRunner{stat: stat, stopTimeout: stopTimeout, modify: modify}
}

// AddSimpleTargetRunner adds an essential SimpleTargetRunner worker to rc.
func AddSimpleTargetRunner(rc *runcontrol.RunControl, r *SimpleTargetRunner) *runcontrol.Worker {
	w := rc.NewWorker(SimpleTargetRunnerKind, r)
	w.SetEssential(true)
	return w
}

func (t *SimpleTargetRunner) Start(w *runcontrol.Worker) {
	t.generation++
	gen := t.generation
	t.proc, t.outputs = nil, nil
	t.launching, t.stopRequested, t.stopReported = false, false, false
	w.RecordData(ExitStatusKey, nil)

	rc := w.RunControl()
	runnable := rc.Runnable()
	if t.modify != nil {
		t.modify(w, &runnable)
	}
	dev := runnable.Device
	if dev == nil {
		w.ReportFailure(fmt.Sprintf("Cannot run %s: no device.", runnable.Executable))
		return
	}
	t.executable = dev.FilePath(runnable.Executable)

	stdout := runcontrol.NewOutputWriter(rc, runcontrol.StdOutFormat, dev.Codec())
	stderr := runcontrol.NewOutputWriter(rc, runcontrol.StdErrFormat, dev.Codec())
	t.outputs = []io.Closer{stdout, stderr}
	cmd := execer.Command{
		Argv:        append([]string{t.executable}, runnable.Args...),
		EnvVars:     runnable.Environment,
		ClearEnv:    runnable.ClearEnvironment,
		Dir:         runnable.WorkingDir,
		Stdout:      stdout,
		Stderr:      stderr,
		StopTimeout: t.stopTimeout,
		LogTags:     execer.LogTags{RunControlID: rc.ID(), WorkerID: w.ID()},
	}
	if runnable.WorkingDir != "" {
		cmd.Dir = dev.FilePath(runnable.WorkingDir)
	}

	shown := runnable
	shown.Executable = t.executable
	w.AppendMessage(fmt.Sprintf("Starting %s...", shown.CommandLine()), runcontrol.NormalMessage)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.launching = true
	var proc execer.Process
	w.RunAsync(func() error {
		if err := dev.EnsureReachable(ctx); err != nil {
			// Exec failures are counted by the execer.
			t.stat.Counter(stats.ProcessStartFailureCounter).Inc(1)
			return rcerrors.NewProcessError(rcerrors.FailedToStart, t.executable, err)
		}
		p, err := dev.Execer().Exec(cmd)
		proc = p
		return err
	}, func(err error) {
		cancel()
		if gen != t.generation {
			// A forced stop or a newer start already moved on.
			if proc != nil {
				t.abort(w, proc, gen)
			}
			return
		}
		t.launching = false
		if err != nil {
			if t.stopRequested {
				w.AppendMessage("The process was ended forcefully.", runcontrol.NormalMessage)
				t.reportStopped(w)
				return
			}
			w.ReportFailure(startFailureMessage(t.executable, err))
			return
		}

		t.proc = proc
		log.WithFields(
			log.Fields{
				"runControl": rc.ID(),
				"worker":     w.ID(),
				"pid":        proc.Pid(),
			}).Info("Target process started")
		if dev.IsLocal() {
			rc.SetApplicationProcessHandle(proc.Pid())
		}
		w.ReportStarted()
		t.waitForExit(w, proc, gen, stdout, stderr)
		if t.stopRequested {
			t.abort(w, proc, gen, stdout, stderr)
		}
	})
}

func (t *SimpleTargetRunner) waitForExit(w *runcontrol.Worker, proc execer.Process, gen int, outputs ...io.Closer) {
	var status execer.ProcessStatus
	w.RunAsync(func() error {
		status = proc.Wait()
		for _, o := range outputs {
			o.Close()
		}
		return nil
	}, func(error) {
		if gen != t.generation || t.stopReported {
			return
		}
		t.proc = nil
		t.onFinished(w, status)
	})
}

func (t *SimpleTargetRunner) onFinished(w *runcontrol.Worker, status execer.ProcessStatus) {
	w.RecordData(ExitStatusKey, status)
	switch {
	case status.Aborted:
		w.AppendMessage("The process was ended forcefully.", runcontrol.NormalMessage)
	case status.State == execer.FAILED:
		w.AppendMessage(fmt.Sprintf("%s finished with an unknown status: %s", t.executable, status.Error), runcontrol.ErrorMessage)
	case status.Crashed:
		w.AppendMessage(fmt.Sprintf("%s crashed.", t.executable), runcontrol.NormalMessage)
	default:
		w.AppendMessage(fmt.Sprintf("%s exited with code %d", t.executable, status.ExitCode), runcontrol.NormalMessage)
	}
	t.reportStopped(w)
}

// reportStopped reports at most once per start.
func (t *SimpleTargetRunner) reportStopped(w *runcontrol.Worker) {
	if t.stopReported {
		return
	}
	t.stopReported = true
	w.ReportStopped()
}

// Stop asks the process to terminate. The worker reports stopped when the
// process is gone, which the execer bounds by its stop timeout.
func (t *SimpleTargetRunner) Stop(w *runcontrol.Worker) {
	t.stopRequested = true
	switch {
	case t.proc != nil:
		t.abort(w, t.proc, t.generation, t.outputs...)
	case t.launching:
		// The start callback sees stopRequested.
		t.cancel()
	default:
		// Start never ran for this stop, nothing to wait for.
		t.stopReported = true
		w.ReportStopped()
	}
}

// abort ends proc off the loop and flushes outputs. The status Abort returns
// finishes the worker unless the exit was already reported, since Wait may
// never return for a process whose output is held open by an orphaned child.
func (t *SimpleTargetRunner) abort(w *runcontrol.Worker, proc execer.Process, gen int, outputs ...io.Closer) {
	var status execer.ProcessStatus
	w.RunAsync(func() error {
		status = proc.Abort()
		for _, o := range outputs {
			o.Close()
		}
		return nil
	}, func(error) {
		if gen != t.generation || t.stopReported {
			return
		}
		t.proc = nil
		t.onFinished(w, status)
	})
}

// Finished drops the current start. A process still running, ex: after a forced
// stop, is aborted in the background.
func (t *SimpleTargetRunner) Finished(w *runcontrol.Worker) {
	gen := t.generation
	t.generation++
	t.launching = false
	if t.cancel != nil {
		t.cancel()
	}
	if t.proc != nil {
		t.abort(w, t.proc, gen)
		t.proc = nil
	}
}

// ExitStatus returns how the last process of a SimpleTargetRunner worker ended.
// ok is false if none ran to completion.
func ExitStatus(w *runcontrol.Worker) (status execer.ProcessStatus, ok bool) {
	status, ok = w.RecordedData(ExitStatusKey).(execer.ProcessStatus)
	return status, ok
}

func startFailureMessage(executable string, err error) string {
	pe := rcerrors.ClassifyStartError(executable, err)
	if pe.Err != nil {
		return fmt.Sprintf("Failed to start %s: %s (%v)", executable, pe.Kind.Message(), pe.Err)
	}
	return fmt.Sprintf("Failed to start %s: %s", executable, pe.Kind.Message())
}
