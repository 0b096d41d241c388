package app

import (
	"strings"
	"time"

	"jobsched/internal/config"
	"jobsched/internal/observability/pprof"
	"jobsched/internal/proc"
	"jobsched/internal/storage"
	"jobsched/internal/systemd"
	"jobsched/internal/transport/telegram"
	"jobsched/internal/trigger"
	logx "jobsched/pkg/logx"
)

// schedulerSettings is the scheduler section with durations parsed.
type schedulerSettings struct {
	MaxJobs       int
	MaxRunning    int
	Tick          time.Duration
	CommandBuffer int
	Workdir       string
	Resolve       proc.ResolveMode
	MaxLine       int
}

func mapSchedulerConfig(cfg *config.Config) (schedulerSettings, error) {
	s := cfg.Scheduler
	tick, err := config.ParseDurationOrDefault("scheduler.tick", s.Tick, 200*time.Millisecond)
	if err != nil {
		return schedulerSettings{}, err
	}
	mode, err := proc.ParseResolveMode(s.Resolve)
	if err != nil {
		return schedulerSettings{}, err
	}
	workdir := strings.TrimSpace(s.Workdir)
	if workdir == "" {
		workdir = "."
	}
	return schedulerSettings{
		MaxJobs:       s.MaxJobs,
		MaxRunning:    s.MaxRunning,
		Tick:          tick,
		CommandBuffer: max(1, s.CommandBuffer),
		Workdir:       workdir,
		Resolve:       mode,
		MaxLine:       s.MaxLine,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Remote: logx.RemoteConfig{
			// The remote sink needs somewhere to send to.
			Enabled:    l.Telegram.Enabled && cfg.Telegram.Enabled && cfg.Telegram.GroupLog != 0,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	t := cfg.Telegram
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	reply, err := config.ParseDurationOrDefault("telegram.reply_timeout", t.ReplyTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:        strings.TrimSpace(t.Token),
		OwnerUserIDs: append([]int64(nil), t.OwnerUserIDs...),
		GroupLog:     t.GroupLog,
		PollTimeout:  poll,
		RatePerSec:   t.RatePerSec,
		ReplyTimeout: reply,
	}, nil
}

// mapStorageConfig reports enabled=false for a missing section or driver none.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, true, nil
}

func mapTriggerConfig(cfg *config.Config) trigger.Config {
	return trigger.Config{
		Timezone: strings.TrimSpace(cfg.Timezone),
		Triggers: config.TriggerDefs(cfg.Triggers),
	}
}

func mapSystemdConfig(cfg *config.Config) systemd.Config {
	return systemd.Config{Notify: cfg.Systemd.Notify, Watchdog: cfg.Systemd.Watchdog}
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	p := cfg.Pprof
	return pprof.Config{
		Enabled:       p.Enabled,
		Addr:          strings.TrimSpace(p.Addr),
		Prefix:        strings.TrimSpace(p.Prefix),
		Token:         strings.TrimSpace(p.Token),
		AllowInsecure: p.AllowInsecure,
	}
}
