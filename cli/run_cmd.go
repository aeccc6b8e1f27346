package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/twitter/runctl/async"
	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/execer"
	"github.com/twitter/runctl/runcontrol"
	"github.com/twitter/runctl/runcontrol/workers"
)

type runCmd struct {
	targetFlags
	dir      string
	env      []string
	clearEnv bool
	name     string
	stats    bool
}

func (c *runCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "run [flags] -- program [args...]",
		Short: "run a program until it exits; interrupt once to stop it, twice to force",
		Args:  cobra.MinimumNArgs(1),
	}
	c.targetFlags.register(r)
	r.Flags().StringVar(&c.dir, "dir", "", "working directory of the program")
	r.Flags().StringArrayVar(&c.env, "env", nil, "KEY=VALUE added to the program's environment (repeatable)")
	r.Flags().BoolVar(&c.clearEnv, "clear_env", false, "start from an empty environment")
	r.Flags().StringVar(&c.name, "name", "", "display name of the run")
	r.Flags().BoolVar(&c.stats, "stats", false, "print collected stats when done")
	return r
}

func (c *runCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	setup, err := cl.loadSetup()
	if err != nil {
		return rcerrors.NewError(err, rcerrors.ConfigurationExitCode)
	}
	env, err := parseEnv(c.env)
	if err != nil {
		return rcerrors.NewError(err, rcerrors.ConfigurationExitCode)
	}
	if c.stats {
		defer func() { fmt.Fprintln(cl.errOut, string(setup.Stat.Render(true))) }()
	}

	loop := async.NewLoop()
	rc := runcontrol.New(loop, c.runMode(), runcontrol.RunConfig{
		Kind:        c.kind,
		DisplayName: c.name,
		Runnable: runcontrol.Runnable{
			Executable:       args[0],
			Args:             args[1:],
			WorkingDir:       c.dir,
			Environment:      env,
			ClearEnvironment: c.clearEnv,
			Device:           setup.Device,
		},
	}, setup.Stat)
	rc.OnMessage(func(m runcontrol.Message) { printMessage(cl.out, cl.errOut, m) })

	target, err := c.registry(setup).Create(rc)
	if err != nil {
		return err
	}

	manager := runcontrol.NewManager(setup.Stat)
	forced := false
	var startErr error

	signals := cl.signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		interrupts := 0
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-signals:
				interrupts++
				n := interrupts
				log.WithFields(
					log.Fields{
						"runControl": rc.ID(),
						"signal":     sig,
					}).Info("Interrupted")
				loop.Post(func() {
					if n == 1 {
						rc.InitiateStop()
						return
					}
					forced = true
					manager.Shutdown()
				})
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		loop.Post(func() { startErr = manager.Start(rc) })
		return loop.RunUntil(gctx, rc.IsStopped)
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	switch {
	case startErr != nil:
		return startErr
	case forced:
		return rcerrors.NewError(errors.New("force-stopped"), rcerrors.ForceStoppedExitCode)
	}
	return exitError(target)
}

// exitError maps how the program ended to runctl's own exit status.
func exitError(target *runcontrol.Worker) error {
	status, ok := workers.ExitStatus(target)
	switch {
	case !ok:
		return rcerrors.NewError(errors.New("program could not be started"), rcerrors.CouldNotExecExitCode)
	case status.Aborted:
		return rcerrors.NewError(errors.New("program was stopped"), rcerrors.ForceStoppedExitCode)
	case status.State == execer.FAILED:
		return rcerrors.NewError(errors.Errorf("program ended with an unknown status: %s", status.Error), rcerrors.GenericFailureExitCode)
	case status.Crashed:
		return rcerrors.NewError(errors.Errorf("program crashed: %s", status.Signal), rcerrors.CrashedExitCode)
	case status.ExitCode != 0:
		return rcerrors.NewError(errors.Errorf("program exited with code %d", status.ExitCode), rcerrors.ExitCode(status.ExitCode))
	}
	return nil
}

func printMessage(out, errOut io.Writer, m runcontrol.Message) {
	switch m.Format {
	case runcontrol.StdOutFormat, runcontrol.StdOutFormatSameLine:
		io.WriteString(out, m.Text)
	case runcontrol.DebugFormat:
		log.Debug(strings.TrimSuffix(m.Text, "\n"))
	default:
		io.WriteString(errOut, m.Text)
	}
}

func parseEnv(vars []string) (map[string]string, error) {
	env := map[string]string{}
	for _, kv := range vars {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			return nil, errors.Errorf("bad --env %q, want KEY=VALUE", kv)
		}
		env[kv[:i]] = kv[i+1:]
	}
	return env, nil
}
