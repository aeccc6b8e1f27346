package runcontrol

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// OutputFormat tags a message so a consumer can style it.
type OutputFormat int

const (
	NormalMessage OutputFormat = iota
	ErrorMessage
	LogMessage
	DebugFormat
	StdOutFormat
	StdErrFormat
	StdOutFormatSameLine
	StdErrFormatSameLine
)

func (f OutputFormat) String() string {
	switch f {
	case NormalMessage:
		return "NormalMessage"
	case ErrorMessage:
		return "ErrorMessage"
	case LogMessage:
		return "LogMessage"
	case DebugFormat:
		return "Debug"
	case StdOutFormat:
		return "StdOut"
	case StdErrFormat:
		return "StdErr"
	case StdOutFormatSameLine:
		return "StdOutSameLine"
	case StdErrFormatSameLine:
		return "StdErrSameLine"
	default:
		return "Unknown"
	}
}

// IsError is true for formats a terminal sink should send to stderr.
func (f OutputFormat) IsError() bool {
	return f == ErrorMessage || f == StdErrFormat || f == StdErrFormatSameLine
}

// Message is one chunk of text posted through a RunControl, in generation order.
type Message struct {
	RunControlID string
	Text         string
	Format       OutputFormat
}

// lineWriter posts complete lines to a RunControl and keeps a trailing partial
// line until it is completed or flushed. Writes may come from any goroutine.
type lineWriter struct {
	rc     *RunControl
	format OutputFormat
	mu     sync.Mutex
	buf    bytes.Buffer
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		l.post(string(l.buf.Next(i + 1)))
	}
	return len(p), nil
}

func (l *lineWriter) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.post(l.buf.String())
		l.buf.Reset()
	}
}

func (l *lineWriter) post(text string) {
	rc, format := l.rc, l.format
	rc.loop.Post(func() {
		rc.PostMessage(text, format, false)
	})
}

type outputWriter struct {
	mu      sync.Mutex
	closed  bool
	lines   *lineWriter
	decoder *transform.Writer
}

// NewOutputWriter returns a writer that decodes process output with codec and
// posts it to rc line by line, in the order written. Close flushes whatever is
// left, including a last line without a newline. A nil codec means UTF-8.
func NewOutputWriter(rc *RunControl, format OutputFormat, codec encoding.Encoding) io.WriteCloser {
	if codec == nil {
		codec = unicode.UTF8
	}
	lines := &lineWriter{rc: rc, format: format}
	return &outputWriter{lines: lines, decoder: transform.NewWriter(lines, codec.NewDecoder())}
}

// Write drops p once the writer is closed.
func (w *outputWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	return w.decoder.Write(p)
}

// Close may be called more than once and from any goroutine.
func (w *outputWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.decoder.Close()
	w.lines.flush()
	return err
}
