package constants

// RunStatus is the terminal status of one pipeline run.
type RunStatus string

// Stable values (stored verbatim in the history log).
const (
	RunStatusSuccess RunStatus = "SUCCESS"         // all pages recognized, fields extracted
	RunStatusPartial RunStatus = "PARTIAL_SUCCESS" // run completed with at least one failed page
	RunStatusFailed  RunStatus = "FAILED"          // terminal failure at some stage
)
