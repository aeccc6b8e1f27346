package runctlconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"gopkg.in/yaml.v3"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/device"
)

// Setup is what a Configuration installs into: the pieces a run needs before
// a RunControl can be created.
type Setup struct {
	Stat        stats.StatsReceiver
	Device      device.Device
	StopTimeout time.Duration
	// Overrides the device's own output codec when set.
	Codec encoding.Encoding
}

// Schema holds the different Implementations the client wants to configure.
type Schema map[string]Implementations

// Implementations maps the names of implementations to the Implementation.
// As a special case, "" maps to a default implementation that is used as-is
// when the option is missing from the config text.
type Implementations map[string]Implementation

// Implementation parses its part of the config (implicitly, through
// json.Unmarshal) and installs itself into a Setup.
type Implementation interface {
	Install(s *Setup) error
}

type Configuration map[string]Implementation

// Install installs the options named in order first, in that order, then the
// remaining ones sorted by name.
func (c Configuration) Install(s *Setup, order ...string) error {
	seen := map[string]bool{}
	names := []string{}
	for _, name := range order {
		if _, ok := c[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range c {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range append(names, rest...) {
		if err := c[name].Install(s); err != nil {
			return errors.Wrapf(err, "installing %s", name)
		}
	}
	return nil
}

var emptyJson = []byte("{}")

func (schema Schema) Parse(text []byte) (Configuration, error) {
	var parsedConfig map[string]json.RawMessage
	if len(strings.TrimSpace(string(text))) == 0 {
		text = emptyJson
	}
	if err := json.Unmarshal(text, &parsedConfig); err != nil {
		return nil, errors.Wrap(err, "couldn't parse top-level config")
	}
	for optionName := range parsedConfig {
		if _, ok := schema[optionName]; !ok {
			return nil, errors.Errorf("unknown option %q", optionName)
		}
	}

	result := Configuration{}
	for optionName, impls := range schema {
		optionText := parsedConfig[optionName]
		// Parse this option's JSON just enough to get the type
		implName, err := parseType(optionText)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing type for %s", optionName)
		}
		impl, ok := impls[implName]
		if !ok {
			return nil, errors.Errorf("parsing %s: %q is not a valid implementation (have %s)",
				optionName, implName, strings.Join(impls.names(), ", "))
		}
		if len(optionText) > 0 {
			if err := json.Unmarshal(optionText, impl); err != nil {
				return nil, errors.Wrapf(err, "parsing %s", optionName)
			}
		}
		result[optionName] = impl
	}
	log.WithField("config", string(text)).Debug("Config parsed")
	return result, nil
}

func (impls Implementations) names() []string {
	var names []string
	for name := range impls {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Find the type, which is simply the string value for the key "Type"
func parseType(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var t struct{ Type string }
	if err := json.Unmarshal(data, &t); err != nil {
		return "", err
	}
	return t.Type, nil
}

// GetConfigText finds the right text for a config flag. A flag ending in
// .json, .yaml or .yml names a file; YAML is converted to JSON. Anything else
// is taken as literal JSON.
func GetConfigText(configFlag string, readFile func(string) ([]byte, error)) ([]byte, error) {
	if readFile == nil {
		readFile = os.ReadFile
	}
	switch strings.ToLower(filepath.Ext(configFlag)) {
	case ".json":
		log.WithField("file", configFlag).Info("Reading config file")
		text, err := readFile(configFlag)
		if err != nil {
			return nil, errors.Wrapf(err, "loading config file %s", configFlag)
		}
		return text, nil
	case ".yaml", ".yml":
		log.WithField("file", configFlag).Info("Reading config file")
		text, err := readFile(configFlag)
		if err != nil {
			return nil, errors.Wrapf(err, "loading config file %s", configFlag)
		}
		return YAMLToJSON(text)
	}
	return []byte(configFlag), nil
}

// YAMLToJSON re-encodes a YAML document as JSON so it can go through Schema.Parse.
func YAMLToJSON(text []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, errors.Wrap(err, "couldn't parse YAML config")
	}
	if doc == nil {
		return emptyJson, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "YAML config has no JSON equivalent")
	}
	return out, nil
}

// Duration is a time.Duration written as a string, ex: "1500ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "durations are strings, ex: \"2s\"")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
