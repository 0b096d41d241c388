package sched

import (
	"fmt"

	"jobsched/internal/command"
)

// Dispatch applies one command and renders the operator-facing reply.
func (s *Scheduler) Dispatch(c command.Command) (string, error) {
	switch c.Verb {
	case command.Run:
		in, err := s.Run(c.Argv)
		if err != nil {
			return "", err
		}
		if in.Status == StatusRunning {
			return fmt.Sprintf("started pid %d in slot %d", in.PID, in.Slot), nil
		}
		return fmt.Sprintf("queued pid %d (%d waiting)", in.PID, s.queue.Len()), nil
	case command.Kill:
		in, err := s.Kill(c.PID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("killed pid %d", in.PID), nil
	case command.Stop:
		in, err := s.Stop(c.PID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("stopped pid %d", in.PID), nil
	case command.Resume:
		in, err := s.Resume(c.PID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("resumed pid %d in slot %d", in.PID, in.Slot), nil
	case command.List:
		if s.closed {
			return "", ErrClosed
		}
		return FormatList(s.List()), nil
	case command.Exit:
		s.Exit()
		return "bye", nil
	default:
		return "", fmt.Errorf("%w: %q", command.ErrUnknownCommand, c.Verb)
	}
}
