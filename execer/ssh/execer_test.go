package ssh

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/execer"
)

// fakeSession exits with exitErr when released, or on any signal listed in dieOn.
type fakeSession struct {
	mu      sync.Mutex
	started string
	signals []ssh.Signal
	dieOn   map[ssh.Signal]bool
	stdout  io.Writer
	release chan error
	once    sync.Once
	closed  bool
}

func newFakeSession(dieOn ...ssh.Signal) *fakeSession {
	s := &fakeSession{release: make(chan error, 1), dieOn: map[ssh.Signal]bool{}}
	for _, sig := range dieOn {
		s.dieOn[sig] = true
	}
	return s
}

func (s *fakeSession) Start(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = cmd
	return nil
}

func (s *fakeSession) Wait() error { return <-s.release }

func (s *fakeSession) exit(err error) {
	s.once.Do(func() { s.release <- err })
}

func (s *fakeSession) Signal(sig ssh.Signal) error {
	s.mu.Lock()
	s.signals = append(s.signals, sig)
	die := s.dieOn[sig]
	s.mu.Unlock()
	if die {
		s.exit(errors.New("signalled"))
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func opener(s *fakeSession) SessionOpener {
	return func(stdout, stderr io.Writer) (Session, error) {
		s.stdout = stdout
		return s, nil
	}
}

func TestCommandLine(t *testing.T) {
	line := CommandLine(execer.Command{
		Argv:    []string{"/opt/app/bin/server", "--name", "it's me", ""},
		Dir:     "/opt/app dir",
		EnvVars: map[string]string{"B": "2", "A": "x y"},
	})
	assert.Equal(t, `cd '/opt/app dir' && exec env 'A=x y' B=2 /opt/app/bin/server --name 'it'\''s me' ''`, line)

	assert.Equal(t, "exec env -i ls", CommandLine(execer.Command{Argv: []string{"ls"}, ClearEnv: true}))
	assert.Equal(t, "exec true", CommandLine(execer.Command{Argv: []string{"true"}}))
}

func TestExecAndExit(t *testing.T) {
	s := newFakeSession()
	exer := NewExecer(opener(s), time.Second, nil)
	var out bytes.Buffer
	p, err := exer.Exec(execer.Command{Argv: []string{"app"}, Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Pid())
	assert.Equal(t, "exec app", s.started)
	assert.Equal(t, &out, s.stdout)

	s.exit(nil)
	st := p.Wait()
	assert.Equal(t, execer.COMPLETE, st.State)
	assert.Equal(t, 0, st.ExitCode)
	assert.True(t, s.closed)
}

func TestAbortTerm(t *testing.T) {
	s := newFakeSession(ssh.SIGTERM)
	exer := NewExecer(opener(s), time.Second, nil)
	p, err := exer.Exec(execer.Command{Argv: []string{"app"}})
	require.NoError(t, err)

	st := p.Abort()
	assert.True(t, st.Aborted)
	assert.False(t, st.Killed)
	assert.Equal(t, []ssh.Signal{ssh.SIGTERM}, s.signals)
}

func TestAbortKill(t *testing.T) {
	s := newFakeSession(ssh.SIGKILL)
	exer := NewExecer(opener(s), 50*time.Millisecond, nil)
	p, err := exer.Exec(execer.Command{Argv: []string{"app"}})
	require.NoError(t, err)

	st := p.Abort()
	assert.True(t, st.Aborted)
	assert.True(t, st.Killed)
	assert.Equal(t, []ssh.Signal{ssh.SIGTERM, ssh.SIGKILL}, s.signals)
}

func TestOpenFailure(t *testing.T) {
	exer := NewExecer(func(stdout, stderr io.Writer) (Session, error) {
		return nil, errors.New("connection refused")
	}, 0, nil)
	_, err := exer.Exec(execer.Command{Argv: []string{"app"}})
	require.Error(t, err)
	kind, ok := rcerrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, rcerrors.FailedToStart, kind)
}

func TestStatusFromErr(t *testing.T) {
	assert.Equal(t, execer.ProcessStatus{State: execer.COMPLETE}, statusFromErr(nil))
	assert.Equal(t, execer.FAILED, statusFromErr(&ssh.ExitMissingError{}).State)
	st := statusFromErr(errors.New("broken"))
	assert.Equal(t, execer.FAILED, st.State)
	assert.Equal(t, "broken", st.Error)
}
