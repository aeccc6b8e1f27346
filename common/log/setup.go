// Package log configures the process-wide logrus logger the way every runctl binary expects.
package log

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	ctxhooks "github.com/twitter/runctl/common/log/hooks"
)

// Configure sets level and format of the standard logrus logger and installs the context hook,
// replacing any hooks a previous call installed.
// level is one of panic|fatal|error|warn|info|debug|trace.
func Configure(level string, json bool, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "bad log level %q", level)
	}
	logrus.SetLevel(lvl)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if out != nil {
		logrus.SetOutput(out)
	}
	hooks := make(logrus.LevelHooks)
	hooks.Add(ctxhooks.NewContextHook())
	logrus.StandardLogger().ReplaceHooks(hooks)
	return nil
}
