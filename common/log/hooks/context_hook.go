package hooks

import (
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

// contextHook annotates every entry with the file:line of the logging call site.
type contextHook struct {
}

func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	stack := debug.Stack()
	lines := strings.Split(string(stack), "\n")
	// Frames are two lines each (func, then file:line). The last logrus file
	// line is followed by the caller's func and file:line.
	caller := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], "sirupsen/logrus") {
			if i+2 < len(lines) {
				caller = lines[i+2]
			}
			break
		}
	}
	loc := strings.TrimSpace(caller)
	if sp := strings.LastIndex(loc, " +0x"); sp > 0 {
		loc = loc[:sp]
	}
	if loc == "" {
		return nil
	}
	// keep package dir and file, ex: runcontrol/runcontrol.go:123
	parts := strings.Split(loc, "/")
	if len(parts) > 2 {
		loc = strings.Join(parts[len(parts)-2:], "/")
	}
	entry.Data["file:line"] = loc
	return nil
}
