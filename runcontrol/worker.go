package runcontrol

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/runctl/common/stats"
)

// Runner is what a Worker does. Start and Stop are called on the RunControl's loop
// and must return promptly; long work goes through Worker.RunAsync and completion
// is reported with ReportStarted, ReportStopped, ReportDone or ReportFailure.
type Runner interface {
	Start(w *Worker)
	Stop(w *Worker)
}

// Finisher is implemented by runners that hold resources past their own stop,
// ex: a process left behind by a forced stop. Finished is called every time the
// RunControl reaches Stopped.
type Finisher interface {
	Finished(w *Worker)
}

// RunnerFuncs adapts plain functions to Runner. A nil StartFunc reports started
// right away, a nil StopFunc reports stopped right away.
type RunnerFuncs struct {
	StartFunc func(w *Worker)
	StopFunc  func(w *Worker)
}

func (r RunnerFuncs) Start(w *Worker) {
	if r.StartFunc == nil {
		w.ReportStarted()
		return
	}
	r.StartFunc(w)
}

func (r RunnerFuncs) Stop(w *Worker) {
	if r.StopFunc == nil {
		w.ReportStopped()
		return
	}
	r.StopFunc(w)
}

// Worker is one cooperating unit of a run. It is owned by exactly one
// RunControl and refers to its dependencies by index into that RunControl.
// All methods must be called on the RunControl's loop.
type Worker struct {
	rc     *RunControl
	index  int
	id     string
	runner Runner
	state  WorkerState

	startDeps []int
	stopDeps  []int

	essential         bool
	supportsReRunning bool

	data map[string]interface{}

	// bumped whenever a queued start/stop becomes stale
	epoch int
}

func (w *Worker) ID() string                  { return w.id }
func (w *Worker) SetID(id string)             { w.id = id }
func (w *Worker) State() WorkerState          { return w.state }
func (w *Worker) RunControl() *RunControl     { return w.rc }
func (w *Worker) Runner() Runner              { return w.runner }
func (w *Worker) IsEssential() bool           { return w.essential }
func (w *Worker) SetEssential(essential bool) { w.essential = essential }
func (w *Worker) SupportsReRunning() bool     { return w.supportsReRunning }

func (w *Worker) SetSupportsReRunning(supports bool) {
	w.supportsReRunning = supports
}

// AddStartDependency keeps w from starting until dep is Running or Done.
func (w *Worker) AddStartDependency(dep *Worker) {
	if idx, ok := w.rc.adopt(w, dep, "start"); ok {
		w.startDeps = append(w.startDeps, idx)
	}
}

// AddStopDependency keeps w from stopping until dep is Done. When dep stops on
// its own, w is stopped too.
func (w *Worker) AddStopDependency(dep *Worker) {
	if idx, ok := w.rc.adopt(w, dep, "stop"); ok {
		w.stopDeps = append(w.stopDeps, idx)
	}
}

func (w *Worker) StartDependencies() []*Worker { return w.rc.byIndex(w.startDeps) }
func (w *Worker) StopDependencies() []*Worker  { return w.rc.byIndex(w.stopDeps) }

// RecordData stores value under key for other workers of the same run to read.
func (w *Worker) RecordData(key string, value interface{}) {
	if w.data == nil {
		w.data = map[string]interface{}{}
	}
	w.data[key] = value
}

func (w *Worker) RecordedData(key string) interface{} {
	return w.data[key]
}

// AppendMessage posts text through the RunControl with a trailing newline.
func (w *Worker) AppendMessage(text string, format OutputFormat) {
	w.rc.PostMessage(text, format, true)
}

// RunAsync runs f off the loop and delivers its result to cb on the loop.
func (w *Worker) RunAsync(f func() error, cb func(error)) {
	w.rc.loop.RunAsync(f, cb)
}

// canStart holds when w is Initialized and every start dependency is Running or Done.
func (w *Worker) canStart() bool {
	if w.state != WorkerInitialized {
		return false
	}
	for _, dep := range w.StartDependencies() {
		if dep.state != WorkerDone && dep.state != WorkerRunning {
			return false
		}
	}
	return true
}

// canStop holds when w is Starting or Running and every stop dependency is Done.
func (w *Worker) canStop() bool {
	if w.state != WorkerStarting && w.state != WorkerRunning {
		return false
	}
	for _, dep := range w.StopDependencies() {
		if dep.state != WorkerDone {
			return false
		}
	}
	return true
}

// queueStart moves w to Starting and defers the runner's Start to the loop.
func (w *Worker) queueStart() {
	w.state = WorkerStarting
	w.epoch++
	epoch := w.epoch
	w.rc.stat.Counter(stats.WorkerStartCounter).Inc(1)
	w.rc.loop.Post(func() {
		if w.epoch != epoch || w.state != WorkerStarting {
			w.rc.debug("Dropping stale start of " + w.id)
			return
		}
		w.rc.debug("Initiate start for " + w.id)
		w.runner.Start(w)
	})
}

// queueStop moves w to Stopping and defers the runner's Stop to the loop.
func (w *Worker) queueStop() {
	w.state = WorkerStopping
	w.epoch++
	epoch := w.epoch
	w.rc.loop.Post(func() {
		if w.epoch != epoch || w.state != WorkerStopping {
			w.rc.debug("Dropping stale stop of " + w.id)
			return
		}
		w.rc.debug("Initiate stop for " + w.id)
		w.runner.Stop(w)
	})
}

// setDone forces w to Done, invalidating anything queued for it.
func (w *Worker) setDone() {
	w.state = WorkerDone
	w.epoch++
}

// ReportStarted is called by the runner once its start succeeded.
func (w *Worker) ReportStarted() {
	w.rc.onWorkerStarted(w)
}

// ReportStopped is called by the runner once it stopped, asked to or not.
func (w *Worker) ReportStopped() {
	w.rc.onWorkerStopped(w)
}

// ReportDone is for short-lived workers without a separate stop phase.
func (w *Worker) ReportDone() {
	switch w.state {
	case WorkerInitialized:
		w.rc.unexpected(fmt.Sprintf("%s reported done before it was started", w.id))
		if w.rc.state == Initialized || w.rc.state == Stopped {
			w.setDone()
			return
		}
		// Dependents may become eligible, or the run may be complete.
		w.ReportStopped()
	case WorkerStarting:
		w.ReportStarted()
		w.ReportStopped()
	case WorkerRunning, WorkerStopping:
		w.ReportStopped()
	case WorkerDone:
	}
}

// ReportFailure posts msg as an error and tears the run down like a stop request.
// The worker ends up Done.
func (w *Worker) ReportFailure(msg string) {
	w.rc.onWorkerFailed(w, msg)
}

func (w *Worker) fields() log.Fields {
	return log.Fields{
		"runControl": w.rc.id,
		"worker":     w.id,
		"state":      w.state,
	}
}
