package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"jobsched/internal/command"
	"jobsched/internal/trigger"
)

// Validate checks a parsed config. All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	s := cfg.Scheduler
	if s.MaxRunning < 1 {
		add("scheduler.max_running must be >= 1")
	}
	if s.MaxJobs <= s.MaxRunning {
		add("scheduler.max_jobs (%d) must be greater than scheduler.max_running (%d)", s.MaxJobs, s.MaxRunning)
	}
	if _, err := ParsePositiveDuration("scheduler.tick", s.Tick); err != nil {
		errs = append(errs, err)
	}
	if s.CommandBuffer < 1 {
		add("scheduler.command_buffer must be >= 1")
	}
	if s.MaxLine < 1 || s.MaxLine > command.MaxLineLen {
		add("scheduler.max_line must be between 1 and %d", command.MaxLineLen)
	}
	switch strings.ToLower(strings.TrimSpace(s.Resolve)) {
	case "", "workdir", "path":
	default:
		add("scheduler.resolve: unknown mode %q (want workdir or path)", s.Resolve)
	}

	if !knownLevel(cfg.Logging.Level) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add("logging.file.path is required when logging.file.enabled")
	}
	if lt := cfg.Logging.Telegram; lt.Enabled {
		if !knownLevel(lt.MinLevel) {
			add("logging.telegram.min_level: unknown level %q", lt.MinLevel)
		}
		if cfg.Telegram.GroupLog == 0 {
			add("logging.telegram requires telegram.group_log")
		}
	}

	t := cfg.Telegram
	if t.Enabled {
		if strings.TrimSpace(t.Token) == "" {
			add("telegram.token is required when telegram.enabled")
		}
		if len(t.OwnerUserIDs) == 0 {
			add("telegram.owner_user_ids must not be empty when telegram.enabled")
		}
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", t.PollTimeout},
		{"telegram.reply_timeout", t.ReplyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if t.RatePerSec < 0 {
		add("telegram.rate_per_sec must be >= 0")
	}

	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				add("storage.path is required for driver %q", st.Driver)
			}
		default:
			add("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("timezone: %v", err)
		}
	}
	if err := trigger.Validate(TriggerDefs(cfg.Triggers)); err != nil {
		add("triggers: %w", err)
	}

	if p := cfg.Pprof; p.Enabled && strings.TrimSpace(p.Addr) == "" {
		add("pprof.addr is required when pprof.enabled")
	}

	return errors.Join(errs...)
}

// TriggerDefs maps the triggers section onto trigger definitions.
func TriggerDefs(in []TriggerConfig) []trigger.Def {
	out := make([]trigger.Def, 0, len(in))
	for _, t := range in {
		out = append(out, trigger.Def{
			Name:     strings.TrimSpace(t.Name),
			Schedule: strings.TrimSpace(t.Schedule),
			Argv:     append([]string(nil), t.Argv...),
			Enabled:  t.Enabled,
		})
	}
	return out
}

func knownLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
