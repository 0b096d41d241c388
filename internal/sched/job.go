package sched

import (
	"strings"

	"jobsched/internal/proc"
)

type Status uint8

const (
	StatusReady Status = iota
	StatusRunning
	StatusStopped
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusStopped:
		return "Stopped"
	case StatusTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Job is a tracked unit of work backed by an OS process.
type Job struct {
	Ref    int // registry index, stable for the job's lifetime
	PID    int
	Argv   []string
	Status Status
	Order  int64 // schedule order while in a slot, -1 otherwise
	Slot   int   // slot table index, -1 when not running
	Exit   proc.ExitStatus

	handle proc.Handle
	queued bool
	endSeq int64
}

// Info is a read-only snapshot of a Job.
type Info struct {
	Ref    int
	PID    int
	Argv   []string
	Status Status
	Slot   int
	Order  int64
	Exit   proc.ExitStatus
}

func (j *Job) Info() Info {
	return Info{
		Ref:    j.Ref,
		PID:    j.PID,
		Argv:   append([]string(nil), j.Argv...),
		Status: j.Status,
		Slot:   j.Slot,
		Order:  j.Order,
		Exit:   j.Exit,
	}
}

func (j *Job) live() bool { return j.Status != StatusTerminated }

func (i Info) Command() string { return strings.Join(i.Argv, " ") }
