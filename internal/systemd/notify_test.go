package systemd

import (
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jobsched/pkg/logx"
)

type capture struct{ states []string }

func (c *capture) notify(state string) (bool, error) {
	c.states = append(c.states, state)
	return true, nil
}

func TestDisabledNotifierSendsNothing(t *testing.T) {
	t.Parallel()
	c := &capture{}
	n := New(Config{}, logx.Nop())
	n.notify = c.notify
	n.interval = time.Second
	n.Ready()
	n.Keepalive()
	n.Stopping()
	if len(c.states) != 0 {
		t.Fatalf("sent %v", c.states)
	}
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()
	c := &capture{}
	n := New(Config{Notify: true}, logx.Nop())
	n.notify = c.notify
	n.Ready()
	n.Status("3 running, 1 waiting")
	n.Keepalive() // no watchdog configured
	n.Stopping()
	want := []string{daemon.SdNotifyReady, "STATUS=3 running, 1 waiting", daemon.SdNotifyStopping}
	if len(c.states) != len(want) {
		t.Fatalf("states = %v, want %v", c.states, want)
	}
	for i := range want {
		if c.states[i] != want[i] {
			t.Fatalf("states = %v, want %v", c.states, want)
		}
	}
}

func TestKeepaliveIsRateLimited(t *testing.T) {
	t.Parallel()
	c := &capture{}
	n := New(Config{Notify: true}, logx.Nop())
	n.notify = c.notify
	n.interval = 10 * time.Second
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	n.Keepalive()
	now = now.Add(time.Second)
	n.Keepalive()
	now = now.Add(10 * time.Second)
	n.Keepalive()
	if len(c.states) != 2 || c.states[0] != daemon.SdNotifyWatchdog {
		t.Fatalf("states = %v, want two watchdog pings", c.states)
	}
}

func TestNotifyErrorIsLoggedNotFatal(t *testing.T) {
	t.Parallel()
	n := New(Config{Notify: true}, logx.Nop())
	calls := 0
	n.notify = func(string) (bool, error) {
		calls++
		return false, errors.New("socket gone")
	}
	n.Ready()
	n.Stopping()
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}
