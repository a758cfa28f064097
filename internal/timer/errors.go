package timer

import "errors"

// Local precondition failures. None of them touch the network.
var (
	ErrAlreadyRunning         = errors.New("timer is already running")
	ErrNotRunning             = errors.New("timer is not running")
	ErrRequestInFlight        = errors.New("a request for this timer is already in flight")
	ErrCategorizationRequired = errors.New("project and task are required to stop the timer")
)
