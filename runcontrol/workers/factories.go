package workers

import (
	"strconv"
	"time"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/runcontrol"
)

const DefaultPortEnvVar = "RUNCTL_PORT"

// TargetOptions configures the factory for plain process runs.
type TargetOptions struct {
	// Empty matches every kind / device type.
	ConfigKinds []string
	DeviceTypes []string

	StopTimeout time.Duration

	// With a port finder the target waits for a free port and gets it in
	// PortEnvVar, and the port finder is only stopped after the target.
	WithPortFinder bool
	PortEnvVar     string
	PortHost       string
}

// NewSimpleTargetFactory services NormalRunMode with a SimpleTargetRunner,
// preceded by a PortFinder if asked to.
func NewSimpleTargetFactory(opts TargetOptions, stat stats.StatsReceiver) *runcontrol.WorkerFactory {
	if opts.PortEnvVar == "" {
		opts.PortEnvVar = DefaultPortEnvVar
	}
	return &runcontrol.WorkerFactory{
		FactoryName: "SimpleTargetRunnerFactory",
		RunModes:    []runcontrol.RunMode{runcontrol.NormalRunMode},
		ConfigKinds: opts.ConfigKinds,
		DeviceTypes: opts.DeviceTypes,
		Produce: func(rc *runcontrol.RunControl) (*runcontrol.Worker, error) {
			if !opts.WithPortFinder {
				return AddSimpleTargetRunner(rc, NewSimpleTargetRunner(opts.StopTimeout, nil, stat)), nil
			}
			finder := AddPortFinder(rc, NewPortFinder(opts.PortHost, nil))
			target := AddSimpleTargetRunner(rc, NewSimpleTargetRunner(opts.StopTimeout, PortEnv(finder, opts.PortEnvVar), stat))
			target.AddStartDependency(finder)
			finder.AddStopDependency(target)
			return target, nil
		},
	}
}

// PortEnv exports the port found by finder as envVar.
func PortEnv(finder *runcontrol.Worker, envVar string) RunnableModifier {
	return func(w *runcontrol.Worker, r *runcontrol.Runnable) {
		env := make(map[string]string, len(r.Environment)+1)
		for k, v := range r.Environment {
			env[k] = v
		}
		env[envVar] = strconv.Itoa(FoundPort(finder))
		r.Environment = env
	}
}
