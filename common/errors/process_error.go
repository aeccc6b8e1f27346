package errors

import (
	"fmt"
	"io"
	"net"
	"os"

	pkgerrors "github.com/pkg/errors"
)

// ProcessErrorKind classifies what went wrong with a supervised process.
type ProcessErrorKind int

const (
	FailedToStart ProcessErrorKind = iota
	Crashed
	// TimedOut is not a failure by itself; the caller may keep waiting.
	TimedOut
	WriteError
	ReadError
	UnknownError
)

func (k ProcessErrorKind) String() string {
	switch k {
	case FailedToStart:
		return "FailedToStart"
	case Crashed:
		return "Crashed"
	case TimedOut:
		return "TimedOut"
	case WriteError:
		return "WriteError"
	case ReadError:
		return "ReadError"
	default:
		return "UnknownError"
	}
}

// Message is the user facing description of k.
func (k ProcessErrorKind) Message() string {
	switch k {
	case FailedToStart:
		return "Failed to start program. Path or permissions wrong?"
	case Crashed:
		return "The program has unexpectedly finished."
	case TimedOut:
		return "The last waitFor...() function timed out."
	case WriteError:
		return "An error occurred when attempting to write to the process. For example, the process may not be running, or it may have closed its input channel."
	case ReadError:
		return "An error occurred when attempting to read from the process. For example, the process may not be running."
	default:
		return "An unknown error in the process occurred."
	}
}

// IsFailure is false only for TimedOut.
func (k ProcessErrorKind) IsFailure() bool {
	return k != TimedOut
}

type ProcessError struct {
	Kind    ProcessErrorKind
	Program string
	Err     error
}

func (e *ProcessError) Error() string {
	msg := e.Kind.Message()
	if e.Program != "" {
		msg = fmt.Sprintf("%s: %s", e.Program, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *ProcessError) Cause() error  { return e.Err }
func (e *ProcessError) Unwrap() error { return e.Err }

func NewProcessError(kind ProcessErrorKind, program string, err error) *ProcessError {
	return &ProcessError{Kind: kind, Program: program, Err: err}
}

// ClassifyStartError turns an error returned while launching program into a ProcessError.
// Timeouts are TimedOut, broken pipes WriteError, everything else FailedToStart.
func ClassifyStartError(program string, err error) *ProcessError {
	if err == nil {
		return nil
	}
	if pe := asProcessError(err); pe != nil {
		return pe
	}
	cause := pkgerrors.Cause(err)
	kind := FailedToStart
	switch {
	case isTimeout(cause):
		kind = TimedOut
	case cause == io.ErrClosedPipe:
		kind = WriteError
	}
	return NewProcessError(kind, program, err)
}

// KindOf reports the ProcessErrorKind of err, if it wraps a ProcessError.
func KindOf(err error) (ProcessErrorKind, bool) {
	if pe := asProcessError(err); pe != nil {
		return pe.Kind, true
	}
	return UnknownError, false
}

// asProcessError walks the Cause chain by hand: pkg/errors.Cause would step
// past the ProcessError itself.
func asProcessError(err error) *ProcessError {
	for err != nil {
		if pe, ok := err.(*ProcessError); ok {
			return pe
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return nil
		}
		err = c.Cause()
	}
	return nil
}

func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout()
	}
	return os.IsTimeout(err)
}
