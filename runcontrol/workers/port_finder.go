package workers

import (
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/twitter/runctl/runcontrol"
)

const (
	PortFinderKind = "PortFinder"
	// PortKey is the recorded-data key a PortFinder stores its port under.
	PortKey = "port"
)

// Listen opens a listener, net.Listen by default.
type Listen func(network, address string) (net.Listener, error)

// PortFinder picks a free local TCP port, records it under PortKey and stays
// Running until stopped.
type PortFinder struct {
	host   string
	listen Listen
}

// NewPortFinder looks for ports on host, "127.0.0.1" if empty.
func NewPortFinder(host string, listen Listen) *PortFinder {
	if host == "" {
		host = "127.0.0.1"
	}
	if listen == nil {
		listen = net.Listen
	}
	return &PortFinder{host: host, listen: listen}
}

func AddPortFinder(rc *runcontrol.RunControl, p *PortFinder) *runcontrol.Worker {
	return rc.NewWorker(PortFinderKind, p)
}

func (p *PortFinder) Start(w *runcontrol.Worker) {
	var port int
	w.RunAsync(func() error {
		l, err := p.listen("tcp", net.JoinHostPort(p.host, "0"))
		if err != nil {
			return err
		}
		defer l.Close()
		addr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			return errors.Errorf("unexpected listener address %v", l.Addr())
		}
		port = addr.Port
		return nil
	}, func(err error) {
		if w.State() != runcontrol.WorkerStarting {
			return
		}
		if err != nil {
			w.ReportFailure(fmt.Sprintf("Could not find a free port on %s: %v", p.host, err))
			return
		}
		w.RecordData(PortKey, port)
		w.AppendMessage(fmt.Sprintf("Found free port %d", port), runcontrol.LogMessage)
		w.ReportStarted()
	})
}

func (p *PortFinder) Stop(w *runcontrol.Worker) {
	w.ReportStopped()
}

// FoundPort returns the port recorded by a PortFinder worker, or 0.
func FoundPort(w *runcontrol.Worker) int {
	port, _ := w.RecordedData(PortKey).(int)
	return port
}
