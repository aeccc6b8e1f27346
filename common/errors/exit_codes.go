package errors

type ExitCode int

const (
	GenericFailureExitCode ExitCode = 1

	// Nothing could be started: no factory, ambiguous factories or a dependency cycle.
	ConfigurationExitCode = 78

	// The main process could not be started.
	CouldNotExecExitCode = 110

	// The main process crashed instead of exiting with a code.
	CrashedExitCode = 111

	// runctl was interrupted and had to force-stop its run control.
	ForceStoppedExitCode = 130
)
