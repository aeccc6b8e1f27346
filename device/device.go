//go:generate mockgen -source=device.go -package=device -destination=device_mock.go

// Package device abstracts where a run's processes execute: this machine or a
// remote target reached over SSH.
package device

import (
	"context"

	"golang.org/x/text/encoding"

	"github.com/twitter/runctl/execer"
)

// Device types used by factories to restrict what they can service.
const (
	DesktopType = "Desktop"
	SSHType     = "GenericLinux"
)

type Device interface {
	ID() string
	Type() string
	IsLocal() bool
	CanOpenTerminal() bool

	// FilePath maps path onto the device's filesystem.
	FilePath(path string) string

	// EnsureReachable blocks until the device accepts commands or ctx is done.
	EnsureReachable(ctx context.Context) error

	Execer() execer.Execer

	// Codec decodes output produced by processes on this device.
	Codec() encoding.Encoding
}
