package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jobsched/internal/command"
	"jobsched/internal/eventbus"
	"jobsched/internal/proc/proctest"
)

func send(cmds chan command.Command, c command.Command) chan command.Result {
	reply := make(chan command.Result, 1)
	c.Reply = reply
	c.Source = "test"
	cmds <- c
	return reply
}

func TestLoopStepProcessesOneCommandPerIteration(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, 99, 3)
	cmds := make(chan command.Command, 4)
	l := NewLoop(s, cmds, LoopOptions{})

	r1 := send(cmds, command.Command{Verb: command.Run, Argv: []string{"a"}})
	r2 := send(cmds, command.Command{Verb: command.Run, Argv: []string{"b"}})

	if done, err := l.Step(); done || err != nil {
		t.Fatalf("Step = %v, %v", done, err)
	}
	if len(s.List()) != 1 || len(r2) != 0 {
		t.Fatal("more than one command handled in one iteration")
	}
	if res := <-r1; res.Err != nil || res.Text != "started pid 100 in slot 0" {
		t.Fatalf("reply = %+v", res)
	}
	l.Step()
	if res := <-r2; res.Err != nil {
		t.Fatalf("second reply = %+v", res)
	}
}

func TestLoopReapsAndPromotesWithinOneIteration(t *testing.T) {
	t.Parallel()
	s, sp := newTestScheduler(t, 99, 3)
	cmds := make(chan command.Command, 8)
	l := NewLoop(s, cmds, LoopOptions{})
	for _, argv := range [][]string{{"echo", "hi"}, {"sleep", "5"}, {"sleep", "5"}, {"sleep", "5"}} {
		send(cmds, command.Command{Verb: command.Run, Argv: argv})
		l.Step()
	}
	if s.Waiting() != 1 {
		t.Fatalf("waiting = %d, want 1", s.Waiting())
	}

	sp.Handle(100).Exit(0)
	l.Step()
	if statusOf(t, s, 100) != StatusTerminated {
		t.Fatal("exited job not reaped")
	}
	if statusOf(t, s, 103) != StatusRunning || s.Waiting() != 0 {
		t.Fatal("queue head not promoted in the same iteration")
	}
}

func TestLoopErrorsAreReplies(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s, _ := newTestScheduler(t, 99, 3)
	cmds := make(chan command.Command, 1)
	l := NewLoop(s, cmds, LoopOptions{Bus: bus})

	reply := send(cmds, command.Command{Verb: command.Kill, PID: 77})
	if done, err := l.Step(); done || err != nil {
		t.Fatalf("Step = %v, %v", done, err)
	}
	if res := <-reply; !errors.Is(res.Err, ErrNotFound) {
		t.Fatalf("reply err = %v, want ErrNotFound", res.Err)
	}
	ev := <-events
	ce, ok := ev.Data.(eventbus.CommandEvent)
	if ev.Type != eventbus.TypeCommand || !ok || ce.Verb != "kill" || ce.Source != "test" || ce.Error == "" {
		t.Fatalf("command event = %+v", ev)
	}
}

func TestLoopFatalSuspendShutsDown(t *testing.T) {
	t.Parallel()
	s, sp := newTestScheduler(t, 99, 3)
	mustRun(t, s, "survivor")
	cmds := make(chan command.Command, 1)
	l := NewLoop(s, cmds, LoopOptions{})

	sp.FailSuspend = true
	reply := send(cmds, command.Command{Verb: command.Run, Argv: []string{"rogue"}})
	done, err := l.Step()
	if !done || !errors.Is(err, ErrFatal) {
		t.Fatalf("Step = %v, %v; want done with ErrFatal", done, err)
	}
	if res := <-reply; !errors.Is(res.Err, ErrFatal) {
		t.Fatalf("reply err = %v", res.Err)
	}
	if !s.Closed() || len(s.List()) != 0 {
		t.Fatal("fatal error did not run exit")
	}
	for _, pid := range sp.PIDs() {
		sig := sp.Handle(pid).Signals()
		if len(sig) == 0 || sig[len(sig)-1] != proctest.SigTerm {
			t.Fatalf("pid %d signals = %v, want TERM", pid, sig)
		}
	}
}

func TestLoopExitCommand(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, 99, 3)
	cmds := make(chan command.Command, 1)
	l := NewLoop(s, cmds, LoopOptions{})
	reply := send(cmds, command.Command{Verb: command.Exit})
	if done, err := l.Step(); !done || err != nil {
		t.Fatalf("Step = %v, %v", done, err)
	}
	if res := <-reply; res.Err != nil || res.Text != "bye" {
		t.Fatalf("reply = %+v", res)
	}
	if done, _ := l.Step(); !done {
		t.Fatal("loop not done after exit")
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	s, sp := newTestScheduler(t, 99, 3)
	cmds := make(chan command.Command, 1)
	var iterations, starts atomic.Int64
	l := NewLoop(s, cmds, LoopOptions{
		Tick:        time.Millisecond,
		OnIteration: func() { iterations.Add(1) },
		OnStart:     func() { starts.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	reply := send(cmds, command.Command{Verb: command.Run, Argv: []string{"sleep", "30"}})
	select {
	case res := <-reply:
		if res.Err != nil {
			t.Fatalf("run: %v", res.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	if starts.Load() != 1 || iterations.Load() == 0 {
		t.Fatalf("hooks: starts=%d iterations=%d", starts.Load(), iterations.Load())
	}
	if sig := sp.Handle(100).Signals(); sig[len(sig)-1] != proctest.SigTerm {
		t.Fatalf("job not terminated on cancel: %v", sig)
	}
}
