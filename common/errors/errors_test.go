package errors

import (
	"io"
	"os"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyStartError(t *testing.T) {
	notFound := &os.PathError{Op: "fork/exec", Path: "/no/such/binary", Err: os.ErrNotExist}
	pe := ClassifyStartError("/no/such/binary", notFound)
	assert.Equal(t, FailedToStart, pe.Kind)
	assert.Contains(t, pe.Error(), "Path or permissions wrong?")

	pe = ClassifyStartError("prog", pkgerrors.Wrap(io.ErrClosedPipe, "writing stdin"))
	assert.Equal(t, WriteError, pe.Kind)

	pe = ClassifyStartError("prog", timeoutErr{})
	assert.Equal(t, TimedOut, pe.Kind)
	assert.False(t, pe.Kind.IsFailure())

	assert.Nil(t, ClassifyStartError("prog", nil))
}

func TestClassifyKeepsExistingProcessError(t *testing.T) {
	orig := NewProcessError(Crashed, "prog", nil)
	wrapped := pkgerrors.Wrap(orig, "while stopping")
	assert.Equal(t, orig, ClassifyStartError("prog", wrapped))

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Crashed, kind)

	_, ok = KindOf(io.EOF)
	assert.False(t, ok)
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("no worker factory for mode %q", "debug")
	assert.True(t, IsConfigurationError(err))
	assert.True(t, IsConfigurationError(pkgerrors.Wrap(err, "creating run control")))
	assert.False(t, IsConfigurationError(io.EOF))
	assert.Equal(t, `configuration error: no worker factory for mode "debug"`, err.Error())
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, ExitCode(0), ExitCodeOf(nil))
	assert.Equal(t, ExitCode(CouldNotExecExitCode), ExitCodeOf(NewError(io.EOF, CouldNotExecExitCode)))
	assert.Equal(t, ExitCode(ConfigurationExitCode), ExitCodeOf(NewConfigurationError("x")))
	assert.Equal(t, GenericFailureExitCode, ExitCodeOf(io.EOF))
	assert.Nil(t, NewError(nil, CrashedExitCode))
}
