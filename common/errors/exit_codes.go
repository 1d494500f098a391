package errors

type ExitCode int

const (
	GenericFailureExitCode ExitCode = 1

	// Command line and configuration
	UsageFailureExitCode  = 64
	ConfigFailureExitCode = 78

	// Host selection service
	ServiceStartFailureExitCode = 80
	ServeFailureExitCode        = 81

	// Queries against a running service
	NoHostAvailableExitCode = 90
	RequestFailureExitCode  = 91

	// Worker side heartbeats
	HeartbeatFailureExitCode = 100
	AnnounceFailureExitCode  = 101
)
