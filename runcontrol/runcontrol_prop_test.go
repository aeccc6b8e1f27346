package runcontrol

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

// workerGraph describes a random acyclic set of workers. Workers are
// identified by a logical id; dependencies always point at a smaller id and
// order gives the (unrelated) creation order.
type workerGraph struct {
	order       []int
	startDeps   [][]int
	stopDeps    [][]int
	reportsDone []bool
	manual      []bool
	stopCalls   int
}

func (g workerGraph) String() string {
	return fmt.Sprintf("order=%v start=%v stop=%v done=%v manual=%v stopCalls=%d",
		g.order, g.startDeps, g.stopDeps, g.reportsDone, g.manual, g.stopCalls)
}

func genWorkerGraph(maxWorkers int) gopter.Gen {
	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		rng := genParams.Rng
		n := 1 + rng.Intn(maxWorkers)
		g := workerGraph{
			order:       rng.Perm(n),
			startDeps:   make([][]int, n),
			stopDeps:    make([][]int, n),
			reportsDone: make([]bool, n),
			manual:      make([]bool, n),
			stopCalls:   1 + rng.Intn(3),
		}
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if rng.Intn(4) == 0 {
					g.startDeps[i] = append(g.startDeps[i], j)
				}
				if rng.Intn(5) == 0 {
					g.stopDeps[i] = append(g.stopDeps[i], j)
				}
			}
			g.reportsDone[i] = rng.Intn(5) == 0
			g.manual[i] = genParams.NextBool()
		}
		return gopter.NewGenResult(g, gopter.NoShrinker)
	}
}

// propRunner checks the dependency rules at the moment it is dispatched.
type propRunner struct {
	run        *graphRun
	id         int
	manual     bool
	reportDone bool
}

type graphRun struct {
	h          *harness
	workers    []*Worker
	starts     []int
	stops      []int
	violations []string
}

func (r *propRunner) Start(w *Worker) {
	r.run.starts[r.id]++
	for _, dep := range w.StartDependencies() {
		if dep.State() != WorkerRunning && dep.State() != WorkerDone {
			r.run.violations = append(r.run.violations,
				fmt.Sprintf("%s started while start dependency %s is %s", w.ID(), dep.ID(), dep.State()))
		}
	}
	switch {
	case r.manual:
	case r.reportDone:
		w.ReportDone()
	default:
		w.ReportStarted()
	}
}

func (r *propRunner) Stop(w *Worker) {
	r.run.stops[r.id]++
	if w.RunControl().State() == Stopping {
		for _, dep := range w.StopDependencies() {
			if dep.State() != WorkerDone {
				r.run.violations = append(r.run.violations,
					fmt.Sprintf("%s stopped while stop dependency %s is %s", w.ID(), dep.ID(), dep.State()))
			}
		}
	}
	w.ReportStopped()
}

func buildGraph(g workerGraph, withManual bool) *graphRun {
	n := len(g.order)
	run := &graphRun{h: newHarness(), workers: make([]*Worker, n), starts: make([]int, n), stops: make([]int, n)}
	for _, id := range g.order {
		r := &propRunner{run: run, id: id, manual: withManual && g.manual[id], reportDone: g.reportsDone[id]}
		w := run.h.rc.NewWorker("w", r)
		w.SetID(fmt.Sprintf("w%d", id))
		run.workers[id] = w
	}
	for id, w := range run.workers {
		for _, dep := range g.startDeps[id] {
			w.AddStartDependency(run.workers[dep])
		}
		for _, dep := range g.stopDeps[id] {
			w.AddStopDependency(run.workers[dep])
		}
	}
	return run
}

func (run *graphRun) allDone() bool {
	for _, w := range run.workers {
		if w.State() != WorkerDone {
			return false
		}
	}
	return true
}

func (run *graphRun) atMost(counts []int, n int) bool {
	for _, c := range counts {
		if c > n {
			return false
		}
	}
	return true
}

func TestRunControlProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("start and stop honor dependencies and stop exactly once", prop.ForAll(
		func(g workerGraph) bool {
			run := buildGraph(g, false)
			h := run.h
			if err := h.rc.InitiateStart(); err != nil {
				return false
			}
			h.drain()
			if h.rc.State() != Running && h.rc.State() != Stopped {
				return false
			}
			if !run.atMost(run.starts, 1) {
				return false
			}
			for i := 0; i < g.stopCalls; i++ {
				h.rc.InitiateStop()
				h.drain()
			}
			if h.rc.State() != Stopped || h.stopped != 1 || !run.allDone() {
				return false
			}
			if !run.atMost(run.stops, 1) {
				return false
			}
			return len(run.violations) == 0
		},
		genWorkerGraph(12),
	))

	properties.Property("every worker that can start eventually does", prop.ForAll(
		func(g workerGraph) bool {
			run := buildGraph(g, false)
			h := run.h
			h.rc.InitiateStart()
			h.drain()
			for _, w := range run.workers {
				if w.State() == WorkerInitialized || w.State() == WorkerStarting || w.State() == WorkerStopping {
					return false
				}
			}
			return true
		},
		genWorkerGraph(12),
	))

	properties.Property("re-run repeats the same lifecycle", prop.ForAll(
		func(g workerGraph) bool {
			run := buildGraph(g, false)
			h := run.h
			h.rc.InitiateStart()
			h.drain()
			h.rc.InitiateStop()
			h.drain()
			if err := h.rc.InitiateReStart(); err != nil {
				return false
			}
			h.drain()
			h.rc.InitiateStop()
			h.drain()
			return h.rc.State() == Stopped && h.stopped == 2 && run.allDone() &&
				run.atMost(run.starts, 2) && len(run.violations) == 0
		},
		genWorkerGraph(10),
	))

	properties.Property("force stop always ends in Stopped and ignores late reports", prop.ForAll(
		func(g workerGraph) bool {
			run := buildGraph(g, true)
			h := run.h
			h.rc.InitiateStart()
			h.drain()
			h.rc.ForceStop()
			if h.rc.State() != Stopped || h.stopped != 1 || !run.allDone() {
				return false
			}
			for id, w := range run.workers {
				if g.manual[id] {
					w.ReportStarted()
					w.ReportStopped()
				}
			}
			h.drain()
			return h.rc.State() == Stopped && h.stopped == 1 && run.allDone()
		},
		genWorkerGraph(12),
	))

	properties.TestingRun(t)
}
