package sched

import (
	"fmt"

	"jobsched/internal/proc"
)

// Registry maps registry slots 0..N-1 to jobs.
//
// Terminated jobs stay in place until Release so that later commands can
// still tell "terminated" from "never existed".
type Registry struct {
	jobs   []*Job
	endSeq int64
}

func NewRegistry(capacity int) *Registry {
	return &Registry{jobs: make([]*Job, capacity)}
}

func (r *Registry) Cap() int { return len(r.jobs) }

// Len counts occupied registry slots, terminated ones included.
func (r *Registry) Len() int {
	n := 0
	for _, j := range r.jobs {
		if j != nil {
			n++
		}
	}
	return n
}

func (r *Registry) Full() bool { return r.Len() == len(r.jobs) }

// Create allocates the lowest free registry slot for a new Ready job.
func (r *Registry) Create(argv []string) (*Job, error) {
	for i, j := range r.jobs {
		if j != nil {
			continue
		}
		nj := &Job{
			Ref:    i,
			Argv:   append([]string(nil), argv...),
			Status: StatusReady,
			Order:  -1,
			Slot:   -1,
		}
		r.jobs[i] = nj
		return nj, nil
	}
	return nil, fmt.Errorf("%w: %d jobs", ErrCapacityExceeded, len(r.jobs))
}

// Find locates a job by OS pid. A live job wins over a terminated one that
// happened to carry the same (since recycled) pid.
func (r *Registry) Find(pid int) *Job {
	var dead *Job
	for _, j := range r.jobs {
		if j == nil || j.PID != pid {
			continue
		}
		if j.live() {
			return j
		}
		if dead == nil || j.endSeq > dead.endSeq {
			dead = j
		}
	}
	return dead
}

// MarkTerminated records the final state of j. Terminated is absorbing.
func (r *Registry) MarkTerminated(j *Job, st proc.ExitStatus) {
	if j.Status == StatusTerminated {
		return
	}
	r.endSeq++
	j.Status = StatusTerminated
	j.Exit = st
	j.endSeq = r.endSeq
	j.Order = -1
	j.Slot = -1
	j.queued = false
}

// OldestTerminated returns the job that terminated first, or nil.
func (r *Registry) OldestTerminated() *Job {
	var old *Job
	for _, j := range r.jobs {
		if j == nil || j.live() {
			continue
		}
		if old == nil || j.endSeq < old.endSeq {
			old = j
		}
	}
	return old
}

// Release frees the registry slot held by j.
func (r *Registry) Release(j *Job) {
	if j == nil || j.Ref < 0 || j.Ref >= len(r.jobs) || r.jobs[j.Ref] != j {
		return
	}
	r.jobs[j.Ref] = nil
}

// Jobs returns the occupied entries in registry order.
func (r *Registry) Jobs() []*Job {
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if j != nil {
			out = append(out, j)
		}
	}
	return out
}
