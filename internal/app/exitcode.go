package app

import "fmt"

// Exit codes: one small integer per distinct startup failure cause, so the
// cause is diagnosable from the exit status alone. 0 is reserved for clean
// termination.
const (
	ExitSuccess = 0
	ExitConfig  = 1

	ExitBusOpen   = 2
	ExitPowerUp   = 3
	ExitIdentity  = 4
	ExitStatusLED = 5
	ExitStore     = 6

	ExitPollLoop = 7
)

// ExitError pairs a failure with its process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (exit code %d)", e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}
