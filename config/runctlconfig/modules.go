package runctlconfig

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/device"
	osexecer "github.com/twitter/runctl/execer/os"
)

// Option names, in the order they are installed.
const (
	StatsOption     = "Stats"
	ExecutionOption = "Execution"
	DeviceOption    = "Device"
)

var InstallOrder = []string{StatsOption, ExecutionOption, DeviceOption}

// DefaultSchema returns a fresh schema; parsing fills in its implementations.
func DefaultSchema() Schema {
	return Schema{
		StatsOption: {
			"none":    &NoStatsConfig{},
			"metrics": &MetricsStatsConfig{},
			"":        &MetricsStatsConfig{Type: "metrics"},
		},
		ExecutionOption: {
			"default": &ExecutionConfig{},
			"":        &ExecutionConfig{Type: "default"},
		},
		DeviceOption: {
			"local": &LocalDeviceConfig{},
			"ssh":   &SSHDeviceConfig{},
			"":      &LocalDeviceConfig{Type: "local"},
		},
	}
}

// Load parses config text with the default schema and installs it.
func Load(text []byte) (*Setup, error) {
	config, err := DefaultSchema().Parse(text)
	if err != nil {
		return nil, err
	}
	s := &Setup{}
	if err := config.Install(s, InstallOrder...); err != nil {
		return nil, err
	}
	return s, nil
}

type NoStatsConfig struct {
	Type string
}

func (c *NoStatsConfig) Install(s *Setup) error {
	s.Stat = stats.NilStatsReceiver()
	return nil
}

// MetricsStatsConfig collects into an in-memory go-metrics registry,
// optionally under a scope.
type MetricsStatsConfig struct {
	Type  string
	Scope []string `json:",omitempty"`
}

func (c *MetricsStatsConfig) Install(s *Setup) error {
	s.Stat = stats.DefaultStatsReceiver()
	if len(c.Scope) > 0 {
		s.Stat = s.Stat.Scope(c.Scope...)
	}
	return nil
}

type ExecutionConfig struct {
	Type string
	// Between asking a process to terminate and killing it.
	StopTimeout Duration `json:",omitempty"`
	// Charset for process output, ex: "iso-8859-1". Empty means the device's.
	Codec string `json:",omitempty"`
}

func (c *ExecutionConfig) Install(s *Setup) error {
	s.StopTimeout = time.Duration(c.StopTimeout)
	if s.StopTimeout < 0 {
		return errors.Errorf("negative stop timeout %v", s.StopTimeout)
	}
	if s.StopTimeout == 0 {
		s.StopTimeout = osexecer.DefaultStopTimeout
	}
	if c.Codec != "" {
		codec, err := device.CodecByName(c.Codec)
		if err != nil {
			return err
		}
		s.Codec = codec
	}
	return nil
}

type LocalDeviceConfig struct {
	Type string
}

func (c *LocalDeviceConfig) Install(s *Setup) error {
	s.Device = device.WithCodec(device.NewDesktop(s.StopTimeout, s.Stat), s.Codec)
	return nil
}

// SSHDeviceConfig is a remote Linux device. Authentication uses KeyFile, then
// Password; host keys are checked against KnownHostsFile unless it is empty.
type SSHDeviceConfig struct {
	Type           string
	ID             string   `json:",omitempty"`
	Host           string   `json:",omitempty"`
	Port           int      `json:",omitempty"`
	User           string   `json:",omitempty"`
	KeyFile        string   `json:",omitempty"`
	Password       string   `json:",omitempty"`
	KnownHostsFile string   `json:",omitempty"`
	Root           string   `json:",omitempty"`
	DialTimeout    Duration `json:",omitempty"`
	MaxRetries     uint64   `json:",omitempty"`
}

func (c *SSHDeviceConfig) Install(s *Setup) error {
	if c.Host == "" {
		return errors.New("ssh device needs a Host")
	}
	var auth []ssh.AuthMethod
	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return errors.Wrap(err, "reading ssh key")
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return errors.Wrapf(err, "parsing ssh key %s", c.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	var hostKeys ssh.HostKeyCallback
	if c.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return errors.Wrapf(err, "reading known hosts %s", c.KnownHostsFile)
		}
		hostKeys = cb
	}
	d := device.NewSSH(device.SSHConfig{
		ID:              c.ID,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Root:            c.Root,
		DialTimeout:     time.Duration(c.DialTimeout),
		StopTimeout:     s.StopTimeout,
		MaxRetries:      c.MaxRetries,
	}, nil, s.Stat)
	s.Device = device.WithCodec(d, s.Codec)
	return nil
}
