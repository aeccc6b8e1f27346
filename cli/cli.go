// Package cli is the runctl command line: it loads a configuration, builds a
// run control for one program and drives it to completion.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	rclog "github.com/twitter/runctl/common/log"
	"github.com/twitter/runctl/config/runctlconfig"
	"github.com/twitter/runctl/runcontrol"
	"github.com/twitter/runctl/runcontrol/workers"
)

type CLI struct {
	rootCmd *cobra.Command
	out     io.Writer
	errOut  io.Writer

	logLevel   string
	logJSON    bool
	configFlag string

	// Delivered interrupts; nil means SIGINT and SIGTERM of this process.
	signals <-chan os.Signal
}

// New builds the command tree. Program output goes to out, everything else to errOut.
func New(out, errOut io.Writer) *CLI {
	c := &CLI{out: out, errOut: errOut}
	c.rootCmd = &cobra.Command{
		Use:           "runctl",
		Short:         "runctl runs a program under a run control and reports how it ended",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return rclog.Configure(c.logLevel, c.logJSON, errOut)
		},
	}
	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.logLevel, "log_level", "info", "log level: error|warn|info|debug|trace")
	flags.BoolVar(&c.logJSON, "log_json", false, "log as JSON")
	flags.StringVar(&c.configFlag, "config", "", "JSON config text, or a .json/.yaml file")
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)

	c.addCmd(&runCmd{})
	c.addCmd(&factoriesCmd{})
	return c
}

// Exec runs the command line args (without the program name).
func (c *CLI) Exec(args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.Execute()
}

func (c *CLI) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

type command interface {
	registerFlags() *cobra.Command
	run(cl *CLI, cmd *cobra.Command, args []string) error
}

func (c *CLI) loadSetup() (*runctlconfig.Setup, error) {
	text, err := runctlconfig.GetConfigText(c.configFlag, nil)
	if err != nil {
		return nil, err
	}
	return runctlconfig.Load(text)
}

// targetFlags are shared by every command that needs the factory registry.
type targetFlags struct {
	mode     string
	kind     string
	withPort bool
	portEnv  string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "normal", "run mode: normal|debug")
	cmd.Flags().StringVar(&f.kind, "kind", DefaultConfigKind, "run configuration kind")
	cmd.Flags().BoolVar(&f.withPort, "port", false, "find a free TCP port and pass it to the program")
	cmd.Flags().StringVar(&f.portEnv, "port_env", workers.DefaultPortEnvVar, "environment variable receiving the port")
}

const DefaultConfigKind = "ProjectExplorer.CustomExecutableRunConfiguration"

func (f *targetFlags) runMode() runcontrol.RunMode {
	if f.mode == "debug" {
		return runcontrol.DebugRunMode
	}
	return runcontrol.NormalRunMode
}

func (f *targetFlags) registry(setup *runctlconfig.Setup) *runcontrol.Registry {
	r := runcontrol.NewRegistry(setup.Stat)
	r.Register(workers.NewSimpleTargetFactory(workers.TargetOptions{
		StopTimeout:    setup.StopTimeout,
		WithPortFinder: f.withPort,
		PortEnvVar:     f.portEnv,
	}, setup.Stat))
	return r
}
