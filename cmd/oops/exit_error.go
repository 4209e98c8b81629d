// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/apikcloud/oops/internal/tui"
	"github.com/apikcloud/oops/pkg/types"
)

// ExitError carries the process status out of a RunE handler. Err is nil
// when the command already printed everything the user needs.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the cause, or a short description of the status.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	switch e.Code {
	case types.ExitFailure:
		return "problems found"
	case types.ExitUsage:
		return "invalid usage"
	case types.ExitInterrupted:
		return "interrupted"
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// foundProblems ends a check that reported n problems on stdout.
func foundProblems(n int) error {
	return &ExitError{Code: types.ExitFailure, Err: fmt.Errorf("%d problem(s) found", n)}
}

// exitCode maps the error returned by the command tree to a process status.
// A declined prompt or SIGINT counts as an interruption.
func exitCode(err error) int {
	if err == nil {
		return int(types.ExitOK)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, tui.ErrInterrupted) {
		return int(types.ExitInterrupted)
	}
	return int(types.ExitFailure)
}
