// Package runcontrol coordinates the workers that together make up one run of
// a program: the target process, port finders, debuggers, log watchers.
//
// A RunControl owns its workers and drives them through their lifecycle by
// scanning them in creation order. Every scan and every worker callback runs
// on a single async.Loop goroutine; starting or stopping a worker is posted to
// the loop instead of being called directly, so a worker that finishes right
// away never recurses into the scan that started it.
package runcontrol

import (
	"fmt"
	"strings"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/runctl/async"
	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/device"
)

// RunControl drives a set of workers through start and stop.
// Except for ID, its methods must be called on the loop it was created with.
type RunControl struct {
	loop *async.Loop
	stat stats.StatsReceiver

	id          string
	mode        RunMode
	config      RunConfig
	displayName string
	icon        string
	extraData   map[string]interface{}

	workers []*Worker
	state   State
	handle  int

	autoRelease bool
	finishing   bool
	released    bool
	// wiring mistakes found while the worker graph was assembled
	setupErr     error
	startLatency stats.Latency

	aboutToStartFns  []func()
	startedFns       []func()
	stoppedFns       []func()
	handleChangedFns []func(pid int)
	messageFns       []func(Message)
	releasedFns      []func()
}

// New creates a RunControl for one run of config in the given mode.
// config is copied and treated as read-only afterwards.
func New(loop *async.Loop, mode RunMode, config RunConfig, stat stats.StatsReceiver) *RunControl {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &RunControl{
		loop:        loop,
		stat:        stat,
		id:          generateRunControlID(),
		mode:        mode,
		config:      config,
		displayName: config.DisplayName,
		extraData:   map[string]interface{}{},
	}
}

func generateRunControlID() string {
	id, err := uuid.NewV4()
	for err != nil {
		id, err = uuid.NewV4()
	}
	return id.String()
}

func (rc *RunControl) ID() string               { return rc.id }
func (rc *RunControl) Loop() *async.Loop        { return rc.loop }
func (rc *RunControl) RunMode() RunMode         { return rc.mode }
func (rc *RunControl) RunConfig() *RunConfig    { return &rc.config }
func (rc *RunControl) Runnable() Runnable       { return rc.config.Runnable }
func (rc *RunControl) Device() device.Device    { return rc.config.Runnable.Device }
func (rc *RunControl) DisplayName() string      { return rc.displayName }
func (rc *RunControl) SetDisplayName(n string)  { rc.displayName = n }
func (rc *RunControl) Icon() string             { return rc.icon }
func (rc *RunControl) SetIcon(icon string)      { rc.icon = icon }
func (rc *RunControl) State() State             { return rc.state }
func (rc *RunControl) IsRunning() bool          { return rc.state == Running }
func (rc *RunControl) IsStarting() bool         { return rc.state == Starting }
func (rc *RunControl) IsStopped() bool          { return rc.state == Stopped }
func (rc *RunControl) Released() bool           { return rc.released }
func (rc *RunControl) SetAutoRelease(auto bool) { rc.autoRelease = auto }

func (rc *RunControl) ExtraData(key string) interface{} {
	return rc.extraData[key]
}

func (rc *RunControl) SetExtraData(key string, value interface{}) {
	rc.extraData[key] = value
}

// OnAboutToStart registers f to run right before a start or re-start.
func (rc *RunControl) OnAboutToStart(f func()) { rc.aboutToStartFns = append(rc.aboutToStartFns, f) }

// OnStarted registers f to run each time the RunControl reaches Running.
func (rc *RunControl) OnStarted(f func()) { rc.startedFns = append(rc.startedFns, f) }

// OnStopped registers f to run each time the RunControl reaches Stopped.
func (rc *RunControl) OnStopped(f func()) { rc.stoppedFns = append(rc.stoppedFns, f) }

func (rc *RunControl) OnApplicationProcessHandleChanged(f func(pid int)) {
	rc.handleChangedFns = append(rc.handleChangedFns, f)
}

// OnMessage registers a sink for every message posted by the RunControl and its workers.
func (rc *RunControl) OnMessage(f func(Message)) { rc.messageFns = append(rc.messageFns, f) }

// OnReleased registers f to run once, when the RunControl is released.
func (rc *RunControl) OnReleased(f func()) { rc.releasedFns = append(rc.releasedFns, f) }

// NewWorker adds a worker at the end of the scan order. Its id is kind#index,
// and it supports re-running until told otherwise.
// A nil runner reports started and stopped as soon as it is asked to.
func (rc *RunControl) NewWorker(kind string, runner Runner) *Worker {
	if runner == nil {
		runner = RunnerFuncs{}
	}
	w := &Worker{
		rc:                rc,
		index:             len(rc.workers),
		id:                fmt.Sprintf("%s#%d", kind, len(rc.workers)),
		runner:            runner,
		supportsReRunning: true,
	}
	rc.workers = append(rc.workers, w)
	return w
}

// Workers returns the workers in creation order.
func (rc *RunControl) Workers() []*Worker {
	return append([]*Worker(nil), rc.workers...)
}

// WorkerByID returns the worker with the given id, or nil.
func (rc *RunControl) WorkerByID(id string) *Worker {
	for _, w := range rc.workers {
		if w.id == id {
			return w
		}
	}
	return nil
}

// SupportsReRunning is true iff every worker supports re-running.
func (rc *RunControl) SupportsReRunning() bool {
	for _, w := range rc.workers {
		if !w.supportsReRunning {
			return false
		}
	}
	return true
}

func (rc *RunControl) ApplicationProcessHandle() int { return rc.handle }

// SetApplicationProcessHandle records the pid of the program being run.
// Listeners are only told about changes.
func (rc *RunControl) SetApplicationProcessHandle(pid int) {
	if rc.handle == pid {
		return
	}
	rc.handle = pid
	for _, f := range rc.handleChangedFns {
		f(pid)
	}
}

// PostMessage is the single output channel of a run. With appendNewline set,
// text gets a trailing newline unless it already ends with one.
func (rc *RunControl) PostMessage(text string, format OutputFormat, appendNewline bool) {
	if appendNewline && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	msg := Message{RunControlID: rc.id, Text: text, Format: format}
	for _, f := range rc.messageFns {
		f(msg)
	}
}

func (rc *RunControl) showError(msg string) {
	if msg != "" {
		rc.PostMessage(msg, ErrorMessage, true)
	}
}

// InitiateStart starts the workers in dependency order. The RunControl must be
// Initialized. A worker graph that could never start is reported as a
// configuration error and leaves the RunControl Stopped.
func (rc *RunControl) InitiateStart() error {
	if rc.released {
		return errors.Errorf("run control %s was released", rc.id)
	}
	if rc.state != Initialized {
		return errors.Errorf("cannot start run control %s in state %s", rc.id, rc.state)
	}
	if err := rc.validate(); err != nil {
		return rc.failStart(err)
	}
	rc.fire(rc.aboutToStartFns)
	rc.setState(Starting)
	rc.debug("Queue: Starting")
	rc.continueStart()
	return nil
}

// InitiateReStart starts a Stopped RunControl again with the same workers.
// Every worker must support re-running.
func (rc *RunControl) InitiateReStart() error {
	if rc.released {
		return errors.Errorf("run control %s was released", rc.id)
	}
	if rc.state != Stopped {
		return errors.Errorf("cannot re-start run control %s in state %s", rc.id, rc.state)
	}
	for _, w := range rc.workers {
		if !w.supportsReRunning {
			return errors.Errorf("worker %s of run control %s does not support re-running", w.id, rc.id)
		}
	}
	if err := rc.validate(); err != nil {
		return rc.failStart(err)
	}
	rc.fire(rc.aboutToStartFns)
	for _, w := range rc.workers {
		if w.state == WorkerDone {
			w.state = WorkerInitialized
		}
	}
	rc.setState(Starting)
	rc.debug("Queue: ReStarting")
	rc.continueStart()
	return nil
}

func (rc *RunControl) validate() error {
	if rc.setupErr != nil {
		return rc.setupErr
	}
	if err := validateDependencies(rc.workers); err != nil {
		rc.stat.Counter(stats.RunControlDependencyCycleCounter).Inc(1)
		return err
	}
	return nil
}

// failStart reports err and stops without starting anything.
func (rc *RunControl) failStart(err error) error {
	rc.showError(err.Error())
	for _, w := range rc.workers {
		w.setDone()
	}
	rc.setState(Stopped)
	return err
}

// InitiateStop stops every worker once its stop dependencies are Done.
// Calling it again while stopping, or once stopped, does nothing.
func (rc *RunControl) InitiateStop() {
	if rc.released {
		return
	}
	switch rc.state {
	case Stopped:
		rc.debug("Already stopped")
		return
	case Initialized:
		rc.debug("Stop requested before start")
	}
	rc.setState(Stopping)
	rc.debug("Queue: Stopping for all workers")
	rc.continueStopOrFinish()
}

// InitiateFinish stops the RunControl and releases it once Stopped.
func (rc *RunControl) InitiateFinish() {
	if rc.released {
		return
	}
	rc.finishing = true
	if rc.state == Stopped {
		rc.release()
		return
	}
	rc.InitiateStop()
}

// ForceStop marks every worker Done and moves to Stopped right away, whatever the
// workers are doing. Runners implementing Finisher get to clean up.
func (rc *RunControl) ForceStop() {
	if rc.state == Stopped {
		rc.debug("Already stopped, nothing to force")
		return
	}
	rc.stat.Counter(stats.RunControlForceStopCounter).Inc(1)
	for _, w := range rc.workers {
		if w.state != WorkerDone {
			rc.debug(fmt.Sprintf("  %s was %s. Set it forcefully to Done.", w.id, w.state))
		}
		w.setDone()
	}
	rc.setState(Stopped)
	rc.debug("All Stopped")
}

// continueStart starts the first Initialized worker that can start, one per pass.
// Once every worker is Running or Done, the RunControl is Running.
func (rc *RunControl) continueStart() {
	if rc.state != Starting {
		rc.unexpected(fmt.Sprintf("continueStart in state %s", rc.state))
		return
	}
	allDone := true
	rc.debug("Looking for next worker")
	for _, w := range rc.workers {
		rc.debug("  Examining worker " + w.id)
		switch w.state {
		case WorkerInitialized:
			if w.canStart() {
				rc.debug("Starting " + w.id)
				w.queueStart()
				return
			}
			rc.debug("  " + w.id + " cannot start.")
			allDone = false
		case WorkerStarting:
			rc.debug("  " + w.id + " currently starting")
			allDone = false
		case WorkerRunning:
			rc.debug("  " + w.id + " currently running")
		case WorkerStopping:
			// Running waits until it is Done.
			rc.debug("  " + w.id + " currently stopping")
			allDone = false
		case WorkerDone:
			rc.debug("  " + w.id + " was done before")
		}
	}
	if allDone {
		rc.setState(Running)
	}
}

// continueStopOrFinish queues a stop for every worker allowed to stop, and
// moves to Stopped once all of them are Done.
func (rc *RunControl) continueStopOrFinish() {
	allDone := true
	for _, w := range rc.workers {
		rc.debug("  Examining worker " + w.id)
		switch w.state {
		case WorkerInitialized:
			rc.debug("  " + w.id + " was Initialized, setting to Done")
			w.setDone()
		case WorkerStopping:
			rc.debug("  " + w.id + " was already Stopping. Keeping it that way")
			allDone = false
		case WorkerStarting, WorkerRunning:
			if w.canStop() {
				rc.debug(fmt.Sprintf("  %s was %s, queuing stop", w.id, w.state))
				w.queueStop()
			} else {
				rc.debug("  " + w.id + " is waiting for dependent workers to stop")
			}
			allDone = false
		case WorkerDone:
			rc.debug("  " + w.id + " was Done. Good.")
		}
	}
	if allDone {
		rc.debug("All Stopped")
		rc.setState(Stopped)
	} else {
		rc.debug("Not all workers Stopped. Waiting...")
	}
}

func (rc *RunControl) onWorkerStarted(w *Worker) {
	switch w.state {
	case WorkerDone:
		rc.debug(w.id + " reported started after it was done. Ignoring.")
		return
	case WorkerStopping:
		rc.debug(w.id + " reported started while a stop is queued")
		return
	case WorkerInitialized, WorkerRunning:
		rc.unexpected(fmt.Sprintf("%s reported started in state %s", w.id, w.state))
	}
	w.state = WorkerRunning

	if rc.state == Starting {
		rc.debug(w.id + " start succeeded")
		rc.continueStart()
		return
	}
	rc.showError(fmt.Sprintf("Unexpected run control state %s when worker %s started.", rc.state, w.id))
}

func (rc *RunControl) onWorkerFailed(w *Worker, msg string) {
	w.setDone()
	rc.stat.Counter(stats.WorkerFailureCounter).Inc(1)
	log.WithFields(w.fields()).Info("Worker failed: " + msg)

	rc.showError(msg)
	switch rc.state {
	case Initialized:
		rc.continueStopOrFinish()
	case Starting, Running:
		rc.InitiateStop()
	case Stopping:
		rc.continueStopOrFinish()
	case Stopped:
		rc.unexpected(w.id + " failed after the run control stopped")
		rc.continueStopOrFinish()
	}
}

func (rc *RunControl) onWorkerStopped(w *Worker) {
	switch w.state {
	case WorkerRunning:
		rc.debug(w.id + " stopped spontaneously.")
		rc.stat.Counter(stats.WorkerSpontaneousStopCounter).Inc(1)
	case WorkerStopping:
		rc.debug(w.id + " stopped expectedly.")
	case WorkerDone:
		rc.debug(w.id + " stopped twice. Huh? But harmless.")
		return
	default:
		rc.debug(fmt.Sprintf("%s stopped unexpectedly in state %s", w.id, w.state))
	}
	w.setDone()

	if rc.state == Stopping {
		rc.continueStopOrFinish()
		return
	}
	if w.essential {
		rc.debug(w.id + " is essential. Stopping all others.")
		rc.InitiateStop()
		return
	}

	for _, dependent := range rc.stopDependents(w) {
		switch dependent.state {
		case WorkerDone, WorkerStopping:
		case WorkerInitialized:
			dependent.setDone()
		default:
			rc.debug("Killing " + dependent.id + " as it depends on stopped " + w.id)
			dependent.queueStop()
		}
	}

	// A worker that went straight from Starting to Done may unblock others.
	if rc.state == Starting {
		rc.continueStart()
	}

	rc.debug("Checking whether all stopped")
	for _, other := range rc.workers {
		switch other.state {
		case WorkerStarting, WorkerRunning, WorkerStopping:
			rc.debug("Not all workers stopped. Waiting...")
			return
		}
	}
	if rc.state == Stopped {
		rc.debug("All workers stopped, but runControl was already stopped.")
		return
	}
	rc.debug("All workers stopped. Set runControl to Stopped")
	for _, other := range rc.workers {
		other.setDone()
	}
	rc.setState(Stopped)
}

// stopDependents are the workers that declared a stop dependency on w.
func (rc *RunControl) stopDependents(w *Worker) []*Worker {
	var dependents []*Worker
	for _, other := range rc.workers {
		for _, idx := range other.stopDeps {
			if idx == w.index {
				dependents = append(dependents, other)
				break
			}
		}
	}
	return dependents
}

func (rc *RunControl) setState(newState State) {
	if newState == rc.state {
		return
	}
	if !IsAllowedTransition(rc.state, newState) {
		rc.unexpected(fmt.Sprintf("Invalid run control state transition from %s to %s", rc.state, newState))
	}
	rc.state = newState
	rc.debug("Entering state " + newState.String())

	switch newState {
	case Starting:
		rc.stat.Counter(stats.RunControlStartCounter).Inc(1)
		rc.startLatency = rc.stat.Precision(time.Millisecond).Latency(stats.RunControlStartLatency_ms).Time()
	case Running:
		rc.stat.Counter(stats.RunControlRunningCounter).Inc(1)
		if rc.startLatency != nil {
			rc.startLatency.Stop()
			rc.startLatency = nil
		}
		rc.fire(rc.startedFns)
	case Stopped:
		rc.stat.Counter(stats.RunControlStopCounter).Inc(1)
		rc.startLatency = nil
		rc.SetApplicationProcessHandle(0)
		for _, w := range rc.workers {
			if f, ok := w.runner.(Finisher); ok {
				f.Finished(w)
			}
		}
		rc.fire(rc.stoppedFns)
		if rc.autoRelease || rc.finishing {
			rc.release()
		}
	}
}

// release is the single point where a RunControl is torn down. Listeners run once.
func (rc *RunControl) release() {
	if rc.released {
		return
	}
	rc.released = true
	rc.debug("All finished. Releasing")
	rc.fire(rc.releasedFns)
}

func (rc *RunControl) fire(fns []func()) {
	for _, f := range fns {
		f()
	}
}

// adopt checks that dep belongs to the same RunControl as w and returns its index.
// Mismatches are kept and reported when the RunControl starts.
func (rc *RunControl) adopt(w, dep *Worker, kind string) (int, bool) {
	if dep == nil || dep.rc != rc {
		name := "<nil>"
		if dep != nil {
			name = dep.id
		}
		err := rcerrors.NewConfigurationError("worker %s: %s dependency %s belongs to another run control", w.id, kind, name)
		if rc.setupErr == nil {
			rc.setupErr = err
		}
		return 0, false
	}
	return dep.index, true
}

func (rc *RunControl) byIndex(idxs []int) []*Worker {
	ws := make([]*Worker, len(idxs))
	for i, idx := range idxs {
		ws[i] = rc.workers[idx]
	}
	return ws
}

func (rc *RunControl) debug(msg string) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	log.WithFields(
		log.Fields{
			"runControl": rc.id,
			"state":      rc.state,
		}).Debug(msg)
}

// unexpected logs a broken invariant and carries on.
func (rc *RunControl) unexpected(msg string) {
	rc.stat.Counter(stats.WorkerUnexpectedTransitionCounter).Inc(1)
	log.WithFields(
		log.Fields{
			"runControl": rc.id,
			"state":      rc.state,
		}).Error(msg)
}
