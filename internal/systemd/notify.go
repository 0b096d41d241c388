// Package systemd speaks the sd_notify protocol: readiness, stopping,
// status text and watchdog keepalives. Every call is a no-op when the
// process was not started by systemd with NOTIFY_SOCKET set.
package systemd

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jobsched/pkg/logx"
)

type Config struct {
	Notify   bool
	Watchdog bool
}

type Notifier struct {
	cfg Config
	log logx.Logger

	// keepalive interval, half of WATCHDOG_USEC; 0 disables keepalives
	interval time.Duration

	mu     sync.Mutex
	last   time.Time
	now    func() time.Time
	notify func(state string) (bool, error)
}

func New(cfg Config, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		notify: sdNotify,
	}
	if cfg.Notify && cfg.Watchdog {
		if d, err := daemon.SdWatchdogEnabled(false); err != nil {
			log.Warn("cannot read watchdog settings", logx.Err(err))
		} else if d > 0 {
			n.interval = d / 2
			log.Info("systemd watchdog enabled", logx.Duration("interval", n.interval))
		}
	}
	return n
}

func sdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status publishes a one-line status shown by `systemctl status`.
func (n *Notifier) Status(text string) { n.send("STATUS=" + text) }

// Keepalive sends WATCHDOG=1 at most once per interval. The control loop
// calls it every iteration, so a wedged loop stops the pings.
func (n *Notifier) Keepalive() {
	if n.interval <= 0 {
		return
	}
	now := n.now()
	n.mu.Lock()
	if !n.last.IsZero() && now.Sub(n.last) < n.interval {
		n.mu.Unlock()
		return
	}
	n.last = now
	n.mu.Unlock()
	n.send(daemon.SdNotifyWatchdog)
}

func (n *Notifier) send(state string) {
	if !n.cfg.Notify {
		return
	}
	sent, err := n.notify(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify", logx.String("state", state))
	}
}
