package runcontrol

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/common/stats"
)

// Factory builds the top-level worker of a run, and whatever workers it depends on.
type Factory interface {
	Name() string
	CanCreate(mode RunMode, deviceType, configKind string) bool
	Create(rc *RunControl) (*Worker, error)
}

// WorkerFactory is a Factory declared by the run modes, run configuration kinds
// and device types it services. Empty ConfigKinds or DeviceTypes match anything;
// RunModes must list every mode served.
type WorkerFactory struct {
	FactoryName string
	RunModes    []RunMode
	// Prefixes of run configuration kinds.
	ConfigKinds []string
	DeviceTypes []string
	Produce     func(rc *RunControl) (*Worker, error)
}

func (f *WorkerFactory) Name() string {
	return f.FactoryName
}

func (f *WorkerFactory) CanCreate(mode RunMode, deviceType, configKind string) bool {
	return matches(f.RunModes, f.ConfigKinds, f.DeviceTypes, mode, deviceType, configKind)
}

func (f *WorkerFactory) Create(rc *RunControl) (*Worker, error) {
	if f.Produce == nil {
		return nil, errors.Errorf("factory %s has no producer", f.FactoryName)
	}
	return f.Produce(rc)
}

// matches is the pure selection rule shared by every declarative factory.
func matches(modes []RunMode, kinds, deviceTypes []string, mode RunMode, deviceType, configKind string) bool {
	modeOK := false
	for _, m := range modes {
		if m == mode {
			modeOK = true
			break
		}
	}
	if !modeOK {
		return false
	}
	if len(kinds) > 0 {
		kindOK := false
		for _, k := range kinds {
			if strings.HasPrefix(configKind, k) {
				kindOK = true
				break
			}
		}
		if !kindOK {
			return false
		}
	}
	if len(deviceTypes) == 0 {
		return true
	}
	for _, t := range deviceTypes {
		if t == deviceType {
			return true
		}
	}
	return false
}

type registration struct {
	factory Factory
}

// Registry is an ordered set of factories. Safe for concurrent use.
type Registry struct {
	mu            sync.Mutex
	registrations []*registration
	stat          stats.StatsReceiver
}

func NewRegistry(stat stats.StatsReceiver) *Registry {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Registry{stat: stat}
}

// Register appends f and returns a func that removes it again. Calling the
// returned func more than once is harmless.
func (r *Registry) Register(f Factory) (unregister func()) {
	reg := &registration{factory: f}
	r.mu.Lock()
	r.registrations = append(r.registrations, reg)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, other := range r.registrations {
				if other == reg {
					r.registrations = append(r.registrations[:i:i], r.registrations[i+1:]...)
					return
				}
			}
		})
	}
}

// Factories returns the registered factories in registration order.
func (r *Registry) Factories() []Factory {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs := make([]Factory, len(r.registrations))
	for i, reg := range r.registrations {
		fs[i] = reg.factory
	}
	return fs
}

// Find returns the one factory that can service the request. No match, or more
// than one, is a ConfigurationError.
func (r *Registry) Find(mode RunMode, deviceType, configKind string) (Factory, error) {
	var found []Factory
	for _, f := range r.Factories() {
		if f.CanCreate(mode, deviceType, configKind) {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		r.stat.Counter(stats.FactoryNoMatchCounter).Inc(1)
		return nil, rcerrors.NewConfigurationError(
			"cannot run %q in mode %s on device type %q: no worker factory matches", configKind, mode, deviceType)
	default:
		r.stat.Counter(stats.FactoryConflictCounter).Inc(1)
		names := make([]string, len(found))
		for i, f := range found {
			names[i] = f.Name()
		}
		return nil, rcerrors.NewConfigurationError(
			"cannot run %q in mode %s on device type %q: factories %s all match",
			configKind, mode, deviceType, strings.Join(names, ", "))
	}
}

// CanRun reports whether exactly one factory services the request.
func (r *Registry) CanRun(mode RunMode, deviceType, configKind string) bool {
	n := 0
	for _, f := range r.Factories() {
		if f.CanCreate(mode, deviceType, configKind) {
			n++
		}
	}
	return n == 1
}

// Create builds the top-level worker for rc with the single matching factory.
func (r *Registry) Create(rc *RunControl) (*Worker, error) {
	mode, deviceType, kind := rc.RunMode(), rc.RunConfig().DeviceType(), rc.RunConfig().Kind
	f, err := r.Find(mode, deviceType, kind)
	if err != nil {
		return nil, err
	}
	log.WithFields(
		log.Fields{
			"runControl": rc.ID(),
			"factory":    f.Name(),
		}).Debug("Creating top-level worker")
	w, err := f.Create(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "factory %s", f.Name())
	}
	if w == nil || w.RunControl() != rc {
		return nil, errors.Errorf("factory %s did not produce a worker for run control %s", f.Name(), rc.ID())
	}
	return w, nil
}
