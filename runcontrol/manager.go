package runcontrol

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/runctl/common/stats"
)

// Manager keeps count of the run controls that are active, so a host can wait
// for, or force down, every run before it exits.
//
// A run control counts as active from Start until it first reaches Stopped or is
// released, whichever comes first, no matter how it got there.
type Manager struct {
	mu     sync.Mutex
	active map[*RunControl]bool
	stat   stats.StatsReceiver
}

func NewManager(stat stats.StatsReceiver) *Manager {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Manager{active: map[*RunControl]bool{}, stat: stat}
}

// Start tracks rc and starts it, or re-starts it if it is Stopped.
// Must be called on rc's loop.
// A start that fails leaves rc inactive.
func (m *Manager) Start(rc *RunControl) error {
	if m.track(rc) {
		rc.OnStopped(func() { m.untrack(rc) })
		rc.OnReleased(func() { m.untrack(rc) })
	}
	if err := rc.startOrRestart(); err != nil {
		m.untrack(rc)
		return err
	}
	return nil
}

func (rc *RunControl) startOrRestart() error {
	if rc.state == Stopped {
		return rc.InitiateReStart()
	}
	return rc.InitiateStart()
}

// track registers rc and reports whether this is its first registration.
func (m *Manager) track(rc *RunControl) (first bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, seen := m.active[rc]
	m.active[rc] = true
	m.stat.Gauge(stats.ActiveRunControlsGauge).Update(int64(m.countLocked()))
	return !seen
}

func (m *Manager) untrack(rc *RunControl) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[rc] {
		m.active[rc] = false
		m.stat.Gauge(stats.ActiveRunControlsGauge).Update(int64(m.countLocked()))
	}
	if rc.released {
		delete(m.active, rc)
	}
}

func (m *Manager) countLocked() int {
	n := 0
	for _, active := range m.active {
		if active {
			n++
		}
	}
	return n
}

// ActiveCount may be called from any goroutine.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked()
}

// Shutdown force-stops every active run control and returns how many it stopped.
// Must be called on the loop of those run controls.
func (m *Manager) Shutdown() int {
	m.mu.Lock()
	var toStop []*RunControl
	for rc, active := range m.active {
		if active {
			toStop = append(toStop, rc)
		}
	}
	m.mu.Unlock()

	for _, rc := range toStop {
		log.WithField("runControl", rc.ID()).Info("Shutting down: force-stopping run control")
		rc.ForceStop()
	}
	return len(toStop)
}
