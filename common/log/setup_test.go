package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("debug", true, &buf))
	defer logrus.SetOutput(os.Stderr)

	logrus.WithField("runControl", "rc-1").Debug("examining worker")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "examining worker", entry["msg"])
	require.Equal(t, "rc-1", entry["runControl"])
	require.Contains(t, entry["file:line"], "setup_test.go:")
}

func TestConfigureRejectsBadLevel(t *testing.T) {
	require.Error(t, Configure("loud", false, nil))
}

func TestConfigureReplacesHooks(t *testing.T) {
	require.NoError(t, Configure("info", false, nil))
	require.NoError(t, Configure("info", false, nil))
	require.Len(t, logrus.StandardLogger().Hooks[logrus.InfoLevel], 1)
}
