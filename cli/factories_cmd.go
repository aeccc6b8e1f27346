package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	rcerrors "github.com/twitter/runctl/common/errors"
)

type factoriesCmd struct {
	targetFlags
}

func (c *factoriesCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "factories",
		Short: "list the worker factories and whether they can run the configured device",
		Args:  cobra.NoArgs,
	}
	c.targetFlags.register(r)
	return r
}

func (c *factoriesCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	setup, err := cl.loadSetup()
	if err != nil {
		return rcerrors.NewError(err, rcerrors.ConfigurationExitCode)
	}
	mode, deviceType := c.runMode(), setup.Device.Type()
	registry := c.registry(setup)
	fmt.Fprintf(cl.out, "device %s (%s), mode %s, kind %s\n", setup.Device.ID(), deviceType, mode, c.kind)
	for _, f := range registry.Factories() {
		fmt.Fprintf(cl.out, "%s\t%s\n", f.Name(), yesNo(f.CanCreate(mode, deviceType, c.kind)))
	}
	_, err = registry.Find(mode, deviceType, c.kind)
	return err
}

func yesNo(b bool) string {
	if b {
		return "can run"
	}
	return "cannot run"
}
