package stats

/*
This file defines all the metrics being collected.   As new metrics are added please follow this pattern.
*/

const (
	/************************* Run control metrics **************************/
	/*
		the number of run controls that entered Starting (first start or re-run)
	*/
	RunControlStartCounter = "runControlStartCounter"

	/*
		the number of run controls that reached Running
	*/
	RunControlRunningCounter = "runControlRunningCounter"

	/*
		the number of run controls that reached Stopped, gracefully or forced
	*/
	RunControlStopCounter = "runControlStopCounter"

	/*
		the number of forceStop() calls that found a run control not yet Stopped
	*/
	RunControlForceStopCounter = "runControlForceStopCounter"

	/*
		time from initiateStart() to the started signal
	*/
	RunControlStartLatency_ms = "runControlStartLatency_ms"

	/*
		run controls that refused to start because their worker graph has a cycle
	*/
	RunControlDependencyCycleCounter = "runControlDependencyCycleCounter"

	/*
		run controls currently registered with the manager (started and not yet released)
	*/
	ActiveRunControlsGauge = "activeRunControlsGauge"

	/************************* Worker metrics **************************/
	/*
		the number of workers dispatched to start
	*/
	WorkerStartCounter = "workerStartCounter"

	/*
		the number of reportFailure() calls
	*/
	WorkerFailureCounter = "workerFailureCounter"

	/*
		workers that went to Done without being asked to stop
	*/
	WorkerSpontaneousStopCounter = "workerSpontaneousStopCounter"

	/*
		illegal state transitions observed (logged and tolerated)
	*/
	WorkerUnexpectedTransitionCounter = "workerUnexpectedTransitionCounter"

	/************************* Worker factory metrics **************************/
	/*
		run requests for which no factory matched
	*/
	FactoryNoMatchCounter = "factoryNoMatchCounter"

	/*
		run requests for which more than one factory matched
	*/
	FactoryConflictCounter = "factoryConflictCounter"

	/************************* Process metrics **************************/
	/*
		processes launched by target runners
	*/
	ProcessStartedCounter = "processStartedCounter"

	/*
		processes that could not be launched
	*/
	ProcessStartFailureCounter = "processStartFailureCounter"

	/*
		processes that had to be SIGKILLed after the graceful stop timeout
	*/
	ProcessKilledCounter = "processKilledCounter"
)
