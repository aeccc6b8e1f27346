package execers

import (
	"github.com/twitter/runctl/execer"
)

// DoneExecer starts processes that have already exited with ExitCode.
// Their output is empty and their pid is Pid.
type DoneExecer struct {
	ExitCode int
	Pid      int
}

func NewDoneExecer() *DoneExecer {
	return &DoneExecer{}
}

func (e *DoneExecer) Exec(command execer.Command) (execer.Process, error) {
	return &doneProcess{
		pid:    e.Pid,
		status: execer.ProcessStatus{State: execer.COMPLETE, ExitCode: e.ExitCode},
	}, nil
}

type doneProcess struct {
	pid    int
	status execer.ProcessStatus
}

func (p *doneProcess) Pid() int                    { return p.pid }
func (p *doneProcess) Wait() execer.ProcessStatus  { return p.status }
func (p *doneProcess) Abort() execer.ProcessStatus { return p.status }

// ErrExecer fails every Exec with Err, as a missing binary would.
type ErrExecer struct {
	Err error
}

func (e *ErrExecer) Exec(command execer.Command) (execer.Process, error) {
	return nil, e.Err
}
