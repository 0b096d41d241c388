// Package proc is the OS process control boundary of the scheduler.
//
// The scheduler core only sees Spawner and Handle; signal numbers, process
// groups and wait(2) semantics stay in this package.
package proc

import (
	"errors"
	"fmt"
)

var (
	// ErrExited is returned by signal methods once the process has been reaped.
	ErrExited = errors.New("process already exited")
	// ErrUnsupported is returned on platforms without job-control signals.
	ErrUnsupported = errors.New("process control not supported on this platform")
)

// ExitStatus describes how a process ended.
type ExitStatus struct {
	Code   int    // exit code, -1 when killed by a signal
	Signal string // terminating signal name, empty on normal exit
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "signal " + s.Signal
	}
	return fmt.Sprintf("exit %d", s.Code)
}

// Handle controls one spawned process.
type Handle interface {
	PID() int
	Suspend() error
	Resume() error
	Terminate() error
	// TryWait reports whether the process has exited, without blocking.
	TryWait() (ExitStatus, bool)
}

// Spawner starts processes.
type Spawner interface {
	Spawn(argv []string) (Handle, error)
}
