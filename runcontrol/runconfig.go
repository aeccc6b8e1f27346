package runcontrol

import (
	"sort"
	"strings"

	"github.com/twitter/runctl/device"
)

// RunMode is the purpose of a run request, used to select worker factories.
type RunMode string

const (
	NormalRunMode RunMode = "RunConfiguration.NormalRunMode"
	DebugRunMode  RunMode = "RunConfiguration.DebugRunMode"
)

// Runnable is what a target runner launches.
type Runnable struct {
	Executable  string
	Args        []string
	WorkingDir  string
	Environment map[string]string
	// Environment is the complete environment of the process, not an addition to it.
	ClearEnvironment bool
	Device           device.Device
}

// CommandLine renders the executable and its arguments for display.
func (r Runnable) CommandLine() string {
	parts := append([]string{r.Executable}, r.Args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			parts[i] = `"` + strings.Replace(p, `"`, `\"`, -1) + `"`
		}
	}
	return strings.Join(parts, " ")
}

// EnvironmentKeys returns the environment keys in sorted order.
func (r Runnable) EnvironmentKeys() []string {
	keys := make([]string, 0, len(r.Environment))
	for k := range r.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunConfig is the read-only description of what to run, supplied when a
// RunControl is created.
type RunConfig struct {
	// Kind identifies the type of run configuration, ex: "ProjectExplorer.CustomExecutableRunConfiguration:server".
	// Factories match it by prefix.
	Kind        string
	DisplayName string

	BuildKey  string
	TargetID  string
	ProjectID string
	KitID     string

	Runnable Runnable
}

// DeviceType is the type of the runnable's device, or "" if none is set.
func (c *RunConfig) DeviceType() string {
	if c == nil || c.Runnable.Device == nil {
		return ""
	}
	return c.Runnable.Device.Type()
}
