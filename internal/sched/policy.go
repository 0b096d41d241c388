package sched

import (
	"errors"
	"fmt"

	"jobsched/internal/eventbus"
	"jobsched/internal/proc"
	logx "jobsched/pkg/logx"
)

// start stamps the occupant of slot i with a fresh order and continues it.
func (s *Scheduler) start(j *Job, i int) {
	s.slots.AssignOrder(i)
	_ = s.signal(j, "continue", j.handle.Resume)
	j.Status = StatusRunning
}

// promote fills a freshly vacated slot from the queue head, if any.
func (s *Scheduler) promote(i int) {
	j := s.queue.Dequeue()
	if j == nil {
		return
	}
	s.slots.occupy(i, j)
	s.start(j, i)
	s.log.Info("job promoted", logx.Int("pid", j.PID), logx.Int("slot", i), logx.Int64("order", j.Order))
	s.publish(eventbus.TypeJobStarted, j, nil)
}

// preempt evicts the occupant with the largest schedule order to the front
// of the ready queue and returns the slot it held. The queue must have room.
func (s *Scheduler) preempt() int {
	i := s.slots.Newest()
	victim := s.slots.OccupantAt(i)
	order := victim.Order
	sigErr := s.signal(victim, "stop", victim.handle.Suspend)
	s.slots.Vacate(i)
	if err := s.queue.EnqueueFront(victim); err != nil {
		// Unreachable while callers check capacity first.
		s.log.Error("requeue of preempted job failed", logx.Int("pid", victim.PID), logx.Err(err))
	}
	s.log.Info("job preempted", logx.Int("pid", victim.PID), logx.Int("slot", i), logx.Int64("order", order))
	s.publish(eventbus.TypeJobPreempted, victim, sigErr)
	return i
}

// terminate continues j first unless it is running, so the TERM is
// observed by a process that would otherwise sit suspended.
func (s *Scheduler) terminate(j *Job) error {
	var errs []error
	if j.Status != StatusRunning {
		errs = append(errs, s.signal(j, "continue", j.handle.Resume))
	}
	errs = append(errs, s.signal(j, "terminate", j.handle.Terminate))
	return errors.Join(errs...)
}

// signal delivers one job-control signal. Failures are logged and
// returned for the event trail, but callers still apply the state change.
func (s *Scheduler) signal(j *Job, action string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%w: %s pid %d: %w", ErrSignalFailed, action, j.PID, err)
	if errors.Is(err, proc.ErrExited) {
		s.log.Debug("signal to exited process", logx.String("action", action), logx.Int("pid", j.PID))
	} else {
		s.log.Warn("signal failed", logx.String("action", action), logx.Int("pid", j.PID), logx.Err(err))
	}
	return err
}

func (s *Scheduler) publish(typ string, j *Job, err error) {
	ev := eventbus.JobEvent{
		Ref:      j.Ref,
		PID:      j.PID,
		Argv:     append([]string(nil), j.Argv...),
		Status:   j.Status.String(),
		Slot:     j.Slot,
		Order:    j.Order,
		ExitCode: j.Exit.Code,
		Signal:   j.Exit.Signal,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
