package device

import (
	"context"
	"io"
	"net"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/execer"
	sshexecer "github.com/twitter/runctl/execer/ssh"
)

// SSHConfig describes a remote Linux target.
type SSHConfig struct {
	ID   string
	Host string
	Port int
	User string

	Auth            []ssh.AuthMethod
	HostKeyCallback ssh.HostKeyCallback

	// Relative paths are resolved against Root on the device.
	Root string

	DialTimeout time.Duration
	// Zero means sshexecer.DefaultStopTimeout.
	StopTimeout time.Duration
	// Retries of EnsureReachable before giving up. Zero means 5.
	MaxRetries uint64
}

// Dialer connects to addr, ssh.Dial by default.
type Dialer func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

// SSH is a remote device. It connects lazily in EnsureReachable and reuses
// the client for every process it runs.
type SSH struct {
	config SSHConfig
	dial   Dialer
	stat   stats.StatsReceiver
	execer execer.Execer

	mu     sync.Mutex
	client *ssh.Client
}

func NewSSH(config SSHConfig, dial Dialer, stat stats.StatsReceiver) *SSH {
	if dial == nil {
		dial = ssh.Dial
	}
	if config.Port == 0 {
		config.Port = 22
	}
	if config.ID == "" {
		config.ID = config.User + "@" + config.Host
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if config.HostKeyCallback == nil {
		config.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	d := &SSH{config: config, dial: dial, stat: stat}
	d.execer = sshexecer.NewExecer(d.openSession, config.StopTimeout, stat)
	return d
}

func (d *SSH) ID() string            { return d.config.ID }
func (d *SSH) Type() string          { return SSHType }
func (d *SSH) IsLocal() bool         { return false }
func (d *SSH) CanOpenTerminal() bool { return false }

func (d *SSH) FilePath(p string) string {
	if p == "" || path.IsAbs(p) || d.config.Root == "" {
		return path.Clean(p)
	}
	return path.Join(d.config.Root, p)
}

func (d *SSH) Addr() string {
	return net.JoinHostPort(d.config.Host, strconv.Itoa(d.config.Port))
}

// EnsureReachable dials the device with exponential backoff until it answers,
// MaxRetries is exhausted or ctx is done.
func (d *SSH) EnsureReachable(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return nil
	}
	clientConfig := &ssh.ClientConfig{
		User:            d.config.User,
		Auth:            d.config.Auth,
		HostKeyCallback: d.config.HostKeyCallback,
		Timeout:         d.config.DialTimeout,
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.config.MaxRetries), ctx)
	try := 1
	err := backoff.Retry(func() error {
		log.WithFields(
			log.Fields{
				"device": d.config.ID,
				"addr":   d.Addr(),
				"try":    try,
			}).Debug("Dialing device")
		try++
		client, err := d.dial("tcp", d.Addr(), clientConfig)
		if err != nil {
			return err
		}
		d.client = client
		return nil
	}, b)
	if err != nil {
		return errors.Wrapf(err, "device %s unreachable at %s", d.config.ID, d.Addr())
	}
	return nil
}

// Close drops the connection, if any.
func (d *SSH) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *SSH) openSession(stdout, stderr io.Writer) (sshexecer.Session, error) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client == nil {
		return nil, errors.Errorf("device %s is not connected", d.config.ID)
	}
	return sshexecer.ClientOpener(client)(stdout, stderr)
}

func (d *SSH) Execer() execer.Execer { return d.execer }

// Remote output is always UTF-8.
func (d *SSH) Codec() encoding.Encoding { return unicode.UTF8 }
