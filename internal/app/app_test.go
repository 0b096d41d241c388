package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"jobsched/internal/command"
	"jobsched/internal/config"
	"jobsched/internal/eventbus"
	"jobsched/internal/proc/proctest"
	"jobsched/internal/sched"
	"jobsched/internal/storage"
	logx "jobsched/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "jobsched.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func waitDone(t *testing.T, a *App) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("app did not finish")
	}
}

func stopApp(t *testing.T, a *App, reason StopReason) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx, reason); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestConsoleSessionIsAudited(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	cfgPath := writeConfig(t, `
scheduler:
  tick: 5ms
logging:
  level: error
storage:
  driver: file
  path: `+auditPath+`
`)
	var out bytes.Buffer
	a, err := New(Options{
		ConfigPath: cfgPath,
		Stdin:      strings.NewReader("run sleep 5\nlist\nexit\n"),
		Stdout:     &out,
		Spawner:    proctest.NewSpawner(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, a)
	stopApp(t, a, StopExitCommand)

	if a.Err() != nil {
		t.Fatalf("Err = %v", a.Err())
	}
	got := out.String()
	for _, want := range []string{"started pid 100 in slot 0", "sleep 5", "bye"} {
		if !strings.Contains(got, want) {
			t.Fatalf("console output missing %q:\n%s", want, got)
		}
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: auditPath}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	entries, err := st.Recent(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	for _, want := range []string{eventbus.TypeCommand, eventbus.TypeJobCreated, eventbus.TypeJobStarted, eventbus.TypeShutdown} {
		if !slices.Contains(kinds, want) {
			t.Fatalf("audit kinds %v missing %q", kinds, want)
		}
	}
}

func TestFatalSuspendStopsApp(t *testing.T) {
	cfgPath := writeConfig(t, `
scheduler:
  tick: 5ms
console:
  enabled: false
logging:
  level: error
`)
	sp := proctest.NewSpawner()
	sp.FailSuspend = true
	a, err := New(Options{ConfigPath: cfgPath, Spawner: sp})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.Submit(context.Background(), command.Command{Verb: command.Run, Argv: []string{"sleep", "1"}}); err != nil {
		t.Fatal(err)
	}
	waitDone(t, a)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Stop(ctx, StopFatalError)

	if !errors.Is(a.Err(), sched.ErrFatal) {
		t.Fatalf("Err = %v, want ErrFatal", a.Err())
	}
	if h := sp.Handle(100); h == nil || !slices.Contains(h.Signals(), proctest.SigTerm) {
		t.Fatal("unsuspendable child should be terminated")
	}
}

func TestStartContextCancelTerminatesJobs(t *testing.T) {
	cfgPath := writeConfig(t, `
scheduler:
  tick: 5ms
console:
  enabled: false
logging:
  level: error
`)
	sp := proctest.NewSpawner()
	a, err := New(Options{ConfigPath: cfgPath, Spawner: sp})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	reply := make(chan command.Result, 1)
	_ = a.Submit(context.Background(), command.Command{Verb: command.Run, Argv: []string{"sleep", "9"}, Reply: reply})
	select {
	case r := <-reply:
		if r.Err != nil {
			t.Fatal(r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}

	cancel()
	waitDone(t, a)
	stopApp(t, a, StopSignal)

	if !slices.Contains(sp.Handle(100).Signals(), proctest.SigTerm) {
		t.Fatalf("signals = %v, want TERM on shutdown", sp.Handle(100).Signals())
	}
}

func TestApplyConfigReportsRestartSections(t *testing.T) {
	a, err := New(Options{Stdin: strings.NewReader(""), Stdout: &bytes.Buffer{}, Spawner: proctest.NewSpawner()})
	if err != nil {
		t.Fatal(err)
	}
	defer a.closeStore()
	a.triggers.Start(context.Background())
	defer a.triggers.Stop(context.Background())

	prev := config.Defaults()
	next := config.Defaults()
	next.Scheduler.MaxRunning = 5
	next.Logging.Level = "debug"
	next.Triggers = []config.TriggerConfig{{Name: "tick", Schedule: "1h", Argv: []string{"./a"}, Enabled: true}}

	ch := a.applyConfig(context.Background(), prev, next)
	if !slices.Equal(ch.Restart, []string{"scheduler"}) {
		t.Fatalf("restart = %v", ch.Restart)
	}
	if !slices.Equal(a.triggers.Entries(), []string{"tick"}) {
		t.Fatalf("triggers not applied: %v", a.triggers.Entries())
	}
}

func TestEntryFromEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		ev   eventbus.Event
		want storage.Entry
		ok   bool
	}{
		{
			name: "job",
			ev: eventbus.Event{Type: eventbus.TypeJobStarted, Time: at, Data: eventbus.JobEvent{
				Ref: 1, PID: 42, Argv: []string{"sleep", "3"}, Status: "Running",
			}},
			want: storage.Entry{At: at, Kind: "job.started", Ref: 1, PID: 42, Argv: "sleep 3", Status: "Running"},
			ok:   true,
		},
		{
			name: "exit signal",
			ev: eventbus.Event{Type: eventbus.TypeJobExited, Time: at, Data: eventbus.JobEvent{
				PID: 7, Status: "Terminated", ExitCode: -1, Signal: "killed",
			}},
			want: storage.Entry{At: at, Kind: "job.exited", PID: 7, Status: "Terminated (signal killed)"},
			ok:   true,
		},
		{
			name: "command",
			ev: eventbus.Event{Type: eventbus.TypeCommand, Time: at, Data: eventbus.CommandEvent{
				Source: "console", Verb: "kill", Args: []string{"9"}, Error: "not found", TookMS: 2,
			}},
			want: storage.Entry{At: at, Kind: "command", Source: "console", Argv: "kill 9", Error: "not found", TookMS: 2},
			ok:   true,
		},
		{
			name: "shutdown",
			ev:   eventbus.Event{Type: eventbus.TypeShutdown, Time: at, Data: 3},
			want: storage.Entry{At: at, Kind: "scheduler.shutdown", Status: "killed 3"},
			ok:   true,
		},
		{
			name: "foreign payload",
			ev:   eventbus.Event{Type: "other", Time: at, Data: "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := entryFromEvent(tt.ev)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("entry = %+v\nwant    %+v", got, tt.want)
			}
		})
	}
}
