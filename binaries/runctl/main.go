package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	rcerrors "github.com/twitter/runctl/common/errors"
	"github.com/twitter/runctl/cli"
)

// CLI binary to run one program under a run control
//	Supported commands: (see "-h" for all options)
//		run [flags] -- program [args...]
//		factories
//	Global flags:
//		--config [JSON text, or a .json/.yaml file]
// 		--log_level [<error|info|debug> level and above should be logged]
//		--log_json
//	Exit status is the program's own exit code, or one of the codes in common/errors.

func main() {
	err := cli.New(os.Stdout, os.Stderr).Exec(os.Args[1:])
	if err != nil {
		log.Error(err)
		os.Exit(int(rcerrors.ExitCodeOf(err)))
	}
}
