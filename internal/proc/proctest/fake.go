// Package proctest provides an in-memory Spawner for scheduler tests.
package proctest

import (
	"errors"
	"fmt"
	"sync"

	"jobsched/internal/proc"
)

// Signal names recorded by fake handles.
const (
	SigStop = "STOP"
	SigCont = "CONT"
	SigTerm = "TERM"
)

// Spawner hands out Fake handles with sequential pids starting at 100.
type Spawner struct {
	mu      sync.Mutex
	nextPID int
	handles map[int]*Fake
	order   []int

	// FailSpawn makes the next Spawn call fail.
	FailSpawn bool
	// FailSuspend makes the next spawned handle reject its first Suspend.
	FailSuspend bool
}

func NewSpawner() *Spawner {
	return &Spawner{nextPID: 100, handles: map[int]*Fake{}}
}

func (s *Spawner) Spawn(argv []string) (proc.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSpawn {
		s.FailSpawn = false
		return nil, fmt.Errorf("fork %v: %w", argv, errors.New("resource temporarily unavailable"))
	}
	pid := s.nextPID
	s.nextPID++
	f := &Fake{pid: pid, argv: append([]string(nil), argv...), failSuspend: s.FailSuspend}
	s.FailSuspend = false
	s.handles[pid] = f
	s.order = append(s.order, pid)
	return f, nil
}

// Handle returns the fake for pid, or nil.
func (s *Spawner) Handle(pid int) *Fake {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[pid]
}

// PIDs returns every spawned pid in spawn order.
func (s *Spawner) PIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.order...)
}

// Fake is a scripted process. It never runs anything; tests decide when it exits.
type Fake struct {
	mu          sync.Mutex
	pid         int
	argv        []string
	signals     []string
	stopped     bool
	exited      bool
	status      proc.ExitStatus
	failSuspend bool
	failSignals bool
}

func (f *Fake) PID() int { return f.pid }

func (f *Fake) Suspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSuspend {
		f.failSuspend = false
		return errors.New("operation not permitted")
	}
	return f.recordLocked(SigStop)
}

func (f *Fake) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordLocked(SigCont)
}

// Terminate only records TERM; tests call Exit to model the death.
func (f *Fake) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordLocked(SigTerm)
}

func (f *Fake) recordLocked(sig string) error {
	if f.exited {
		return proc.ErrExited
	}
	if f.failSignals {
		return errors.New("no such process")
	}
	f.signals = append(f.signals, sig)
	switch sig {
	case SigStop:
		f.stopped = true
	case SigCont:
		f.stopped = false
	}
	return nil
}

func (f *Fake) TryWait() (proc.ExitStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.exited
}

// Exit marks the process as exited with code.
func (f *Fake) Exit(code int) {
	f.mu.Lock()
	f.exited = true
	f.status = proc.ExitStatus{Code: code}
	f.mu.Unlock()
}

// FailSignals makes every later signal delivery fail.
func (f *Fake) FailSignals() {
	f.mu.Lock()
	f.failSignals = true
	f.mu.Unlock()
}

// Signals returns the signals delivered so far, in order.
func (f *Fake) Signals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signals...)
}

// Stopped reports whether the last job-control signal was STOP.
func (f *Fake) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// Argv returns the argv the fake was spawned with.
func (f *Fake) Argv() []string { return append([]string(nil), f.argv...) }
