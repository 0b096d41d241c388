package sched

import "errors"

var (
	ErrNotFound          = errors.New("no such job")
	ErrAlreadyTerminated = errors.New("job already terminated")
	ErrAlreadyRunning    = errors.New("job already running")
	ErrCapacityExceeded  = errors.New("job table full")
	ErrQueueFull         = errors.New("ready queue full")
	ErrSpawnFailed       = errors.New("spawn failed")
	ErrSignalFailed      = errors.New("signal failed")
	// ErrFatal means a fresh child could not be suspended. The scheduler
	// shuts down when it sees it.
	ErrFatal = errors.New("scheduler fatal error")
	// ErrClosed is returned by every action after Exit.
	ErrClosed = errors.New("scheduler closed")
)
