package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// Exit codes for the websvc CLI
const (
	// ExitSuccess indicates every call succeeded
	ExitSuccess = 0

	// ExitRequestFailure indicates one or more calls failed
	ExitRequestFailure = 1

	// ExitValidationError indicates a response did not match its schema
	ExitValidationError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// exitCode maps a command error to a process exit code. Errors without an
// explicit code come from flag and argument parsing.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsageError
}

// resultExitCode picks the exit code for a failed call.
func resultExitCode(err error) int {
	if webservice.KindOf(err) == webservice.KindTransport {
		return ExitNetworkError
	}
	return ExitRequestFailure
}
