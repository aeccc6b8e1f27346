package device

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/encoding"

	"github.com/twitter/runctl/common/stats"
	"github.com/twitter/runctl/execer"
	osexecer "github.com/twitter/runctl/execer/os"
)

const DesktopID = "Desktop Device"

// Desktop is the machine runctl itself runs on.
type Desktop struct {
	execer execer.Execer
	codec  encoding.Encoding
}

// NewDesktop returns the local device. Output is decoded with the locale's codec.
func NewDesktop(stopTimeout time.Duration, stat stats.StatsReceiver) *Desktop {
	return &Desktop{
		execer: osexecer.NewExecer(stopTimeout, stat),
		codec:  LocaleCodec(os.Getenv),
	}
}

// NewDesktopWithExecer is used by tests to swap in a simulated execer.
func NewDesktopWithExecer(ex execer.Execer, codec encoding.Encoding) *Desktop {
	return &Desktop{execer: ex, codec: codec}
}

func (d *Desktop) ID() string            { return DesktopID }
func (d *Desktop) Type() string          { return DesktopType }
func (d *Desktop) IsLocal() bool         { return true }
func (d *Desktop) CanOpenTerminal() bool { return true }

func (d *Desktop) FilePath(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

func (d *Desktop) EnsureReachable(ctx context.Context) error {
	return ctx.Err()
}

func (d *Desktop) Execer() execer.Execer    { return d.execer }
func (d *Desktop) Codec() encoding.Encoding { return d.codec }
