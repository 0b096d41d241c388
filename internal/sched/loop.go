package sched

import (
	"context"
	"errors"
	"time"

	"jobsched/internal/command"
	"jobsched/internal/eventbus"
	logx "jobsched/pkg/logx"
)

const DefaultTick = 200 * time.Millisecond

type LoopOptions struct {
	// Tick is the sleep between iterations.
	Tick time.Duration
	Bus  eventbus.Bus
	Log  logx.Logger
	// OnIteration runs after every iteration (systemd watchdog keepalive).
	OnIteration func()
	// OnStart runs once before the first iteration.
	OnStart func()
}

// Loop is the single control loop: poll at most one command, dispatch it,
// reap, sleep.
type Loop struct {
	s       *Scheduler
	cmds    <-chan command.Command
	tick    time.Duration
	bus     eventbus.Bus
	log     logx.Logger
	onIter  func()
	onStart func()
}

func NewLoop(s *Scheduler, cmds <-chan command.Command, opts LoopOptions) *Loop {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	return &Loop{
		s:       s,
		cmds:    cmds,
		tick:    opts.Tick,
		bus:     opts.Bus,
		log:     opts.Log,
		onIter:  opts.OnIteration,
		onStart: opts.OnStart,
	}
}

// Step runs one iteration without sleeping. done is true once the
// scheduler has shut down; err is non-nil only for ErrFatal.
func (l *Loop) Step() (done bool, err error) {
	if l.s.closed {
		return true, nil
	}
	select {
	case c, ok := <-l.cmds:
		if !ok {
			l.cmds = nil
			break
		}
		if done, err := l.handle(c); done || err != nil {
			return done, err
		}
	default:
	}
	l.s.Reap()
	return false, nil
}

func (l *Loop) handle(c command.Command) (bool, error) {
	start := time.Now()
	text, err := l.s.Dispatch(c)
	took := time.Since(start)

	ev := eventbus.CommandEvent{
		Source: c.Source,
		Verb:   string(c.Verb),
		Args:   c.Args(),
		TookMS: took.Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
		l.log.Debug("command failed", logx.String("source", c.Source), logx.String("cmd", c.String()), logx.Err(err))
	} else {
		l.log.Debug("command", logx.String("source", c.Source), logx.String("cmd", c.String()), logx.Duration("took", took))
	}
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeCommand, Data: ev})

	if errors.Is(err, ErrFatal) {
		l.log.Error("fatal scheduler error, shutting down", logx.Err(err))
		l.s.Exit()
		c.Respond(command.Result{Err: err})
		return true, err
	}
	c.Respond(command.Result{Text: text, Err: err})
	return c.Verb == command.Exit, nil
}

// Run drives the loop until exit, a fatal error, or ctx cancellation.
// Cancellation runs Exit so no child outlives the scheduler.
func (l *Loop) Run(ctx context.Context) error {
	if l.onStart != nil {
		l.onStart()
	}
	t := time.NewTicker(l.tick)
	defer t.Stop()
	for {
		done, err := l.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if l.onIter != nil {
			l.onIter()
		}
		select {
		case <-ctx.Done():
			l.log.Info("context cancelled, terminating jobs")
			l.s.Exit()
			return nil
		case <-t.C:
		}
	}
}
