package worker

import "errors"

// Pool lifecycle and submission errors.
var (
	ErrNilProcessor       = errors.New("worker: processor must not be nil")
	ErrPoolNotStarted     = errors.New("worker: pool not started")
	ErrPoolStopped        = errors.New("worker: pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker: pool already started")
	ErrQueueFull          = errors.New("worker: queue full")
	ErrStopTimeout        = errors.New("worker: stop timed out")
)
