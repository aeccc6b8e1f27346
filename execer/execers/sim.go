package execers

import (
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/twitter/runctl/execer"
)

// SimExecer runs scripted processes instead of programs. Each element of argv
// is one step, run in order:
//
//	complete <code>   exit with code
//	crash [signal]    die from signal, "segmentation fault" if none is given
//	pause             block until the process is aborted
//	stdout <text>     write text to stdout
//	stderr <text>     write text to stderr
//
// Elements starting with '#' are skipped, so argv[0] may name the program.
// A script that runs out of steps exits with code 0.
type SimExecer struct {
	lastPid int32
}

func NewSimExecer() *SimExecer {
	return &SimExecer{}
}

// A simStep returns the final status if it ends the process, nil otherwise.
type simStep func(p *simProcess) *execer.ProcessStatus

func (e *SimExecer) Exec(command execer.Command) (execer.Process, error) {
	var steps []simStep
	for _, arg := range command.Argv {
		step, err := parseStep(arg)
		if err != nil {
			return nil, err
		}
		if step != nil {
			steps = append(steps, step)
		}
	}
	p := &simProcess{
		pid:    int(atomic.AddInt32(&e.lastPid, 1)),
		stdout: command.Stdout,
		stderr: command.Stderr,
		doneCh: make(chan struct{}),
	}
	if p.stdout == nil {
		p.stdout = io.Discard
	}
	if p.stderr == nil {
		p.stderr = io.Discard
	}
	go p.run(steps)
	return p, nil
}

func parseStep(arg string) (simStep, error) {
	if strings.HasPrefix(arg, "#") {
		return nil, nil
	}
	verb, rest, _ := strings.Cut(arg, " ")
	switch verb {
	case "complete":
		code, err := strconv.Atoi(rest)
		if err != nil {
			return nil, errors.Wrapf(err, "bad exit code in %q", arg)
		}
		return func(*simProcess) *execer.ProcessStatus {
			return &execer.ProcessStatus{State: execer.COMPLETE, ExitCode: code}
		}, nil
	case "crash":
		signal := rest
		if signal == "" {
			signal = "segmentation fault"
		}
		return func(*simProcess) *execer.ProcessStatus {
			return &execer.ProcessStatus{State: execer.COMPLETE, ExitCode: -1, Crashed: true, Signal: signal}
		}, nil
	case "pause":
		return func(p *simProcess) *execer.ProcessStatus {
			<-p.doneCh
			return nil
		}, nil
	case "stdout":
		return func(p *simProcess) *execer.ProcessStatus {
			p.stdout.Write([]byte(rest))
			return nil
		}, nil
	case "stderr":
		return func(p *simProcess) *execer.ProcessStatus {
			p.stderr.Write([]byte(rest))
			return nil
		}, nil
	}
	return nil, errors.Errorf("can't simulate %q", arg)
}

type simProcess struct {
	pid    int
	stdout io.Writer
	stderr io.Writer

	mu     sync.Mutex
	status execer.ProcessStatus
	doneCh chan struct{}
}

func (p *simProcess) Pid() int {
	return p.pid
}

func (p *simProcess) Wait() execer.ProcessStatus {
	<-p.doneCh
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Abort ends the script as if SIGTERM had killed it.
func (p *simProcess) Abort() execer.ProcessStatus {
	p.finish(execer.ProcessStatus{
		State:    execer.COMPLETE,
		ExitCode: -1,
		Crashed:  true,
		Signal:   "terminated",
		Aborted:  true,
	})
	return p.Wait()
}

// finish sets the final status. The first call wins.
func (p *simProcess) finish(status execer.ProcessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.doneCh:
		return
	default:
	}
	p.status = status
	close(p.doneCh)
}

func (p *simProcess) run(steps []simStep) {
	for _, step := range steps {
		select {
		case <-p.doneCh:
			return
		default:
		}
		if end := step(p); end != nil {
			p.finish(*end)
			return
		}
	}
	p.finish(execer.ProcessStatus{State: execer.COMPLETE})
}
