package exerciser

import "errors"

var (
	// ErrZeroAmount means the caller asked to exercise nothing.
	ErrZeroAmount = errors.New("zero amount")
	// ErrUnauthorizedCaller means a privileged entry point was invoked
	// by anything other than its configured principal.
	ErrUnauthorizedCaller = errors.New("unauthorized caller")
	// ErrNoLoanInProgress means the loan callback fired without a
	// matching loan requested by this engine.
	ErrNoLoanInProgress = errors.New("no loan in progress")
)
