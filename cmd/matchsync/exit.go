package main

import (
	"context"
	"errors"

	"github.com/timmy/matchsync/internal/service"
)

// Process exit codes.
const (
	exitOK        = 0
	exitItemError = 1 // run finished but some items failed
	exitAborted   = 2
	exitCancelled = 130
)

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status"
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCodeFor maps a run result to the process exit code.
func exitCodeFor(stats *service.RunStats, err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitCancelled
	case err != nil:
		return exitAborted
	case stats != nil && stats.Errored > 0:
		return exitItemError
	default:
		return exitOK
	}
}

// runResult turns a run outcome into the error cobra returns.
func runResult(stats *service.RunStats, err error) error {
	code := exitCodeFor(stats, err)
	if code == exitOK {
		return nil
	}
	return &exitError{code: code, err: err}
}
