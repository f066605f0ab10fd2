package exitcode

const (
	Success           = 0
	RuntimeFailure    = 1
	InvalidUsage      = 2
	InvalidConfig     = 3
	MissingDependency = 4
	PlaybookFailed    = 5
	RunLocked         = 6
	Interrupted       = 130
)
