package runctlconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/device"
	osexecer "github.com/twitter/runctl/execer/os"
)

type recorder struct {
	Type  string
	Value int `json:",omitempty"`
	order *[]string
	name  string
}

func (r *recorder) Install(s *Setup) error {
	*r.order = append(*r.order, r.name)
	return nil
}

func TestParseAndInstallOrder(t *testing.T) {
	var order []string
	rec := func(name string) *recorder { return &recorder{order: &order, name: name} }
	schema := Schema{
		"A": {"": rec("A"), "x": rec("A.x")},
		"B": {"": rec("B")},
		"C": {"": rec("C")},
	}
	config, err := schema.Parse([]byte(`{"A": {"Type": "x", "Value": 7}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, config["A"].(*recorder).Value)

	require.NoError(t, config.Install(&Setup{}, "C"))
	assert.Equal(t, []string{"C", "A.x", "B"}, order)
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		`{`,
		`{"Device": {"Type": "carrier-pigeon"}}`,
		`{"Devices": {}}`,
		`{"Device": {"Type": "ssh", "Port": "twenty-two"}}`,
		`{"Execution": {"StopTimeout": 5}}`,
	} {
		_, err := DefaultSchema().Parse([]byte(text))
		assert.Error(t, err, text)
	}
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, osexecer.DefaultStopTimeout, s.StopTimeout)
	assert.Nil(t, s.Codec)
	require.NotNil(t, s.Device)
	assert.Equal(t, device.DesktopType, s.Device.Type())

	s.Stat.Counter(stats.RunControlStartCounter).Inc(1)
	assert.Contains(t, string(s.Stat.Render(false)), stats.RunControlStartCounter)
}

func TestLoadExecutionAndStats(t *testing.T) {
	s, err := Load([]byte(`{
		"Stats": {"Type": "none"},
		"Execution": {"StopTimeout": "500ms", "Codec": "koi8-r"},
		"Device": {"Type": "local"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, s.StopTimeout)
	assert.Equal(t, "koi8-r", device.CodecName(s.Codec))
	assert.Equal(t, "koi8-r", device.CodecName(s.Device.Codec()))
	assert.Empty(t, s.Stat.Render(false))

	_, err = Load([]byte(`{"Execution": {"Codec": "klingon"}}`))
	assert.Error(t, err)
	_, err = Load([]byte(`{"Execution": {"StopTimeout": "-1s"}}`))
	assert.Error(t, err)
}

func TestLoadSSHDevice(t *testing.T) {
	s, err := Load([]byte(`{"Device": {"Type": "ssh", "Host": "build-box", "User": "ci", "Root": "/srv/app", "Password": "secret"}}`))
	require.NoError(t, err)
	assert.Equal(t, device.SSHType, s.Device.Type())
	assert.Equal(t, "ci@build-box", s.Device.ID())
	assert.False(t, s.Device.IsLocal())
	assert.Equal(t, "/srv/app/bin/server", s.Device.FilePath("bin/server"))

	_, err = Load([]byte(`{"Device": {"Type": "ssh"}}`))
	assert.Error(t, err)
	_, err = Load([]byte(`{"Device": {"Type": "ssh", "Host": "h", "KeyFile": "/does/not/exist"}}`))
	assert.Error(t, err)
}

func TestGetConfigText(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "runctl.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("Execution:\n  StopTimeout: 3s\nDevice:\n  Type: local\n"), 0644))
	jsonFile := filepath.Join(dir, "runctl.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"Stats": {"Type": "none"}}`), 0644))

	text, err := GetConfigText(yamlFile, nil)
	require.NoError(t, err)
	var parsed map[string]map[string]string
	require.NoError(t, json.Unmarshal(text, &parsed))
	assert.Equal(t, "3s", parsed["Execution"]["StopTimeout"])

	s, err := Load(text)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, s.StopTimeout)

	text, err = GetConfigText(jsonFile, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"Stats": {"Type": "none"}}`, string(text))

	text, err = GetConfigText(`{"Device": {}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"Device": {}}`, string(text))

	_, err = GetConfigText(filepath.Join(dir, "missing.yml"), nil)
	assert.Error(t, err)

	empty, err := YAMLToJSON([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestDurationJSON(t *testing.T) {
	b, err := json.Marshal(ExecutionConfig{Type: "default", StopTimeout: Duration(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, `{"Type":"default","StopTimeout":"1.5s"}`, string(b))
}
