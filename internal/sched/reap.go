package sched

import (
	"jobsched/internal/eventbus"
	logx "jobsched/pkg/logx"
)

// Reap checks every occupied slot without blocking. Exited occupants are
// marked Terminated and their slot is refilled from the queue. It returns
// the reaped jobs.
func (s *Scheduler) Reap() []Info {
	if s.closed {
		return nil
	}
	var reaped []Info
	for i := 0; i < s.slots.Len(); i++ {
		j := s.slots.OccupantAt(i)
		if j == nil {
			continue
		}
		st, done := j.handle.TryWait()
		if !done {
			continue
		}
		s.slots.Vacate(i)
		s.reg.MarkTerminated(j, st)
		s.log.Info("job exited", logx.Int("pid", j.PID), logx.String("status", st.String()))
		s.publish(eventbus.TypeJobExited, j, nil)
		reaped = append(reaped, j.Info())
		s.promote(i)
	}
	return reaped
}
