package sched

import (
	"errors"
	"fmt"

	"jobsched/internal/command"
	"jobsched/internal/eventbus"
	"jobsched/internal/proc"
	logx "jobsched/pkg/logx"
)

const (
	DefaultMaxJobs    = 99
	DefaultMaxRunning = 3
)

// killedStatus is recorded for jobs ended by kill or exit; the waiter
// collects the real status but nobody reaps it any more.
var killedStatus = proc.ExitStatus{Code: -1, Signal: "terminated"}

type Options struct {
	MaxJobs    int // registry capacity N
	MaxRunning int // slot count K
	Spawner    proc.Spawner
	Bus        eventbus.Bus
	Log        logx.Logger
}

// Scheduler owns the registry, slot table and ready queue. It is not safe
// for concurrent use.
type Scheduler struct {
	reg     *Registry
	slots   *SlotTable
	queue   *ReadyQueue
	spawner proc.Spawner
	bus     eventbus.Bus
	log     logx.Logger
	closed  bool
}

func New(opts Options) (*Scheduler, error) {
	if opts.MaxJobs == 0 {
		opts.MaxJobs = DefaultMaxJobs
	}
	if opts.MaxRunning == 0 {
		opts.MaxRunning = DefaultMaxRunning
	}
	if opts.MaxRunning < 1 {
		return nil, fmt.Errorf("max running must be >= 1, got %d", opts.MaxRunning)
	}
	if opts.MaxJobs <= opts.MaxRunning {
		return nil, fmt.Errorf("max jobs (%d) must exceed max running (%d)", opts.MaxJobs, opts.MaxRunning)
	}
	if opts.Spawner == nil {
		return nil, errors.New("nil spawner")
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	return &Scheduler{
		reg:     NewRegistry(opts.MaxJobs),
		slots:   NewSlotTable(opts.MaxRunning),
		queue:   NewReadyQueue(opts.MaxJobs - opts.MaxRunning),
		spawner: opts.Spawner,
		bus:     opts.Bus,
		log:     opts.Log,
	}, nil
}

// Run spawns argv suspended, then either starts it in a free slot or parks
// it at the tail of the ready queue.
func (s *Scheduler) Run(argv []string) (Info, error) {
	if s.closed {
		return Info{}, ErrClosed
	}
	if len(argv) == 0 {
		return Info{}, fmt.Errorf("%w: empty argv", command.ErrBadArgument)
	}
	if _, free := s.slots.FirstFree(); !free && s.queue.Full() {
		return Info{}, fmt.Errorf("%w: %d waiting", ErrQueueFull, s.queue.Len())
	}
	// A full registry recycles its oldest terminated entry, but only once
	// the new child exists.
	var evict *Job
	if s.reg.Full() {
		if evict = s.reg.OldestTerminated(); evict == nil {
			return Info{}, fmt.Errorf("%w: %d jobs", ErrCapacityExceeded, s.reg.Cap())
		}
	}

	argv = append([]string(nil), argv...)
	h, err := s.spawner.Spawn(argv)
	if err != nil {
		s.log.Warn("spawn failed", logx.Strings("argv", argv), logx.Err(err))
		return Info{}, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, argv[0], err)
	}
	if evict != nil {
		s.release(evict)
	}
	j, err := s.reg.Create(argv)
	if err != nil {
		_ = h.Terminate()
		return Info{}, err
	}
	j.handle = h
	j.PID = h.PID()

	if err := h.Suspend(); err != nil {
		s.log.Error("cannot suspend new child",
			logx.Int("pid", j.PID), logx.Strings("argv", j.Argv), logx.Err(err))
		_ = h.Terminate()
		s.reg.MarkTerminated(j, killedStatus)
		return j.Info(), fmt.Errorf("%w: suspend pid %d: %v", ErrFatal, j.PID, err)
	}
	s.publish(eventbus.TypeJobCreated, j, nil)

	if i, ok := s.slots.TryOccupy(j); ok {
		s.start(j, i)
		s.log.Info("job started", logx.Int("pid", j.PID), logx.Int("slot", i), logx.Strings("argv", j.Argv))
		s.publish(eventbus.TypeJobStarted, j, nil)
		return j.Info(), nil
	}
	// Capacity was checked above.
	_ = s.queue.EnqueueTail(j)
	s.log.Info("job queued", logx.Int("pid", j.PID), logx.Int("waiting", s.queue.Len()), logx.Strings("argv", j.Argv))
	s.publish(eventbus.TypeJobQueued, j, nil)
	return j.Info(), nil
}

// Kill terminates the job with the given pid wherever it is.
func (s *Scheduler) Kill(pid int) (Info, error) {
	if s.closed {
		return Info{}, ErrClosed
	}
	j := s.reg.Find(pid)
	if j == nil {
		return Info{}, fmt.Errorf("%w: pid %d", ErrNotFound, pid)
	}
	if !j.live() {
		return j.Info(), fmt.Errorf("%w: pid %d", ErrAlreadyTerminated, pid)
	}
	if j.queued {
		s.queue.Remove(j)
	}
	slot := j.Slot
	if slot >= 0 {
		s.slots.Vacate(slot)
	}
	sigErr := s.terminate(j)
	s.reg.MarkTerminated(j, killedStatus)
	s.log.Info("job killed", logx.Int("pid", pid))
	s.publish(eventbus.TypeJobKilled, j, sigErr)
	if slot >= 0 {
		s.promote(slot)
	}
	return j.Info(), nil
}

// Stop suspends a running job and hands its slot to the queue head.
func (s *Scheduler) Stop(pid int) (Info, error) {
	if s.closed {
		return Info{}, ErrClosed
	}
	j := s.reg.Find(pid)
	if j == nil || j.Status != StatusRunning || j.Slot < 0 {
		return Info{}, fmt.Errorf("%w: no running job with pid %d", ErrNotFound, pid)
	}
	sigErr := s.signal(j, "stop", j.handle.Suspend)
	if errors.Is(sigErr, proc.ErrExited) {
		return s.stopExited(j)
	}
	slot := j.Slot
	s.slots.Vacate(slot)
	j.Status = StatusStopped
	s.log.Info("job stopped", logx.Int("pid", pid), logx.Int("slot", slot))
	s.publish(eventbus.TypeJobStopped, j, sigErr)
	s.promote(slot)
	return j.Info(), nil
}

// stopExited handles a stop that raced the job's own exit. The job is
// reaped on the spot when its status is already available; otherwise it
// keeps its slot until the next Reap collects it.
func (s *Scheduler) stopExited(j *Job) (Info, error) {
	pid := j.PID
	st, done := j.handle.TryWait()
	if !done {
		return j.Info(), fmt.Errorf("%w: pid %d", ErrAlreadyTerminated, pid)
	}
	slot := j.Slot
	s.slots.Vacate(slot)
	s.reg.MarkTerminated(j, st)
	s.log.Info("job exited", logx.Int("pid", pid), logx.String("status", st.String()))
	s.publish(eventbus.TypeJobExited, j, nil)
	s.promote(slot)
	return j.Info(), fmt.Errorf("%w: pid %d", ErrAlreadyTerminated, pid)
}

// Resume puts a stopped or queued job back into a slot, preempting the most
// recently placed occupant when every slot is busy.
func (s *Scheduler) Resume(pid int) (Info, error) {
	if s.closed {
		return Info{}, ErrClosed
	}
	j := s.reg.Find(pid)
	if j == nil {
		return Info{}, fmt.Errorf("%w: pid %d", ErrNotFound, pid)
	}
	switch j.Status {
	case StatusRunning:
		return j.Info(), fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
	case StatusTerminated:
		return j.Info(), fmt.Errorf("%w: pid %d", ErrAlreadyTerminated, pid)
	}

	slot, free := s.slots.FirstFree()
	if !free {
		// The victim goes back into the queue; make sure it fits before
		// touching anything.
		if !j.queued && s.queue.Full() {
			return j.Info(), fmt.Errorf("%w: cannot preempt for pid %d", ErrQueueFull, pid)
		}
		if j.queued {
			s.queue.Remove(j)
		}
		slot = s.preempt()
	} else if j.queued {
		s.queue.Remove(j)
	}

	s.slots.occupy(slot, j)
	s.start(j, slot)
	s.log.Info("job resumed", logx.Int("pid", pid), logx.Int("slot", slot), logx.Int64("order", j.Order))
	s.publish(eventbus.TypeJobResumed, j, nil)
	return j.Info(), nil
}

// List returns every registry entry in registry order.
func (s *Scheduler) List() []Info {
	jobs := s.reg.Jobs()
	out := make([]Info, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Info())
	}
	return out
}

// Exit terminates every live job, releases the whole registry and closes
// the scheduler. It is idempotent.
func (s *Scheduler) Exit() {
	if s.closed {
		return
	}
	s.closed = true
	s.queue.reset()
	s.slots.reset()
	killed := 0
	for _, j := range s.reg.Jobs() {
		if j.live() {
			sigErr := s.terminate(j)
			s.reg.MarkTerminated(j, killedStatus)
			s.publish(eventbus.TypeJobKilled, j, sigErr)
			killed++
		}
		s.release(j)
	}
	s.log.Info("scheduler shut down", logx.Int("killed", killed))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeShutdown, Data: killed})
}

// Closed reports whether Exit has run.
func (s *Scheduler) Closed() bool { return s.closed }

// Running returns the number of occupied slots.
func (s *Scheduler) Running() int { return s.slots.Busy() }

// Waiting returns the ready queue length.
func (s *Scheduler) Waiting() int { return s.queue.Len() }

func (s *Scheduler) release(j *Job) {
	s.reg.Release(j)
	s.publish(eventbus.TypeJobReleased, j, nil)
}
