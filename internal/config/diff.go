package config

import (
	"reflect"
	"sort"
	"strings"

	logx "jobsched/pkg/logx"
)

// Change describes what differs between two configs.
type Change struct {
	// Sections lists changed top-level sections, sorted.
	Sections []string
	// Fields are safe log attributes. Tokens are reported as set/unset only.
	Fields []logx.Field
	// Restart lists changed sections that only take effect after restart.
	Restart []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares oldCfg and newCfg section by section.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var ch Change
	mark := func(section string, restart bool, fields ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Fields = append(ch.Fields, fields...)
		if restart {
			ch.Restart = append(ch.Restart, section)
		}
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		s := newCfg.Scheduler
		mark("scheduler", true,
			logx.Int("scheduler.max_jobs", s.MaxJobs),
			logx.Int("scheduler.max_running", s.MaxRunning),
			logx.String("scheduler.tick", strings.TrimSpace(s.Tick)),
			logx.String("scheduler.resolve", s.Resolve),
		)
	}

	if oldCfg.Console.IsEnabled() != newCfg.Console.IsEnabled() || oldCfg.Console.Prompt != newCfg.Console.Prompt {
		mark("console", true, logx.Bool("console.enabled", newCfg.Console.IsEnabled()))
	}

	if oldCfg.Logging != newCfg.Logging {
		l := newCfg.Logging
		mark("logging", false,
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file_enabled", l.File.Enabled),
			logx.Bool("logging.telegram_enabled", l.Telegram.Enabled),
		)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := strings.TrimSpace(ot.Token) != strings.TrimSpace(nt.Token)
	if tokenChanged || ot.Enabled != nt.Enabled || ot.GroupLog != nt.GroupLog ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		ot.RatePerSec != nt.RatePerSec ||
		strings.TrimSpace(ot.ReplyTimeout) != strings.TrimSpace(nt.ReplyTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		restart := tokenChanged || ot.Enabled != nt.Enabled || strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout)
		mark("telegram", restart,
			logx.Bool("telegram.enabled", nt.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
			logx.Bool("telegram.token_changed", tokenChanged),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", nt.GroupLog != 0),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		var driver string
		var pathSet bool
		if s := newCfg.Storage; s != nil {
			driver = strings.TrimSpace(s.Driver)
			pathSet = strings.TrimSpace(s.Path) != ""
		}
		mark("storage", true,
			logx.String("storage.driver", driver),
			logx.Bool("storage.path_set", pathSet),
		)
	}

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) ||
		!reflect.DeepEqual(oldCfg.Triggers, newCfg.Triggers) {
		enabled := 0
		for _, t := range newCfg.Triggers {
			if t.Enabled {
				enabled++
			}
		}
		mark("triggers", false,
			logx.Int("triggers.count", len(newCfg.Triggers)),
			logx.Int("triggers.enabled", enabled),
			logx.String("triggers.timezone", strings.TrimSpace(newCfg.Timezone)),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", true,
			logx.Bool("systemd.notify", newCfg.Systemd.Notify),
			logx.Bool("systemd.watchdog", newCfg.Systemd.Watchdog),
		)
	}

	op, np := oldCfg.Pprof, newCfg.Pprof
	if op.Enabled != np.Enabled || op.Addr != np.Addr || op.Prefix != np.Prefix ||
		op.AllowInsecure != np.AllowInsecure || op.Token != np.Token {
		mark("pprof", false,
			logx.Bool("pprof.enabled", np.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(np.Addr)),
			logx.Bool("pprof.token_set", strings.TrimSpace(np.Token) != ""),
		)
	}

	sort.Strings(ch.Sections)
	sort.Strings(ch.Restart)
	return ch
}
