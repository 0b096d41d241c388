package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("200ms", "10s") and are parsed when the app maps sections onto services.
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Console   ConsoleConfig   `json:"console"`
	Logging   LoggingConfig   `json:"logging"`
	Telegram  TelegramConfig  `json:"telegram"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Triggers  []TriggerConfig `json:"triggers,omitempty"`
	// Timezone applies to cron triggers; empty means local time.
	Timezone string        `json:"timezone,omitempty"`
	Systemd  SystemdConfig `json:"systemd"`
	Pprof    PprofConfig   `json:"pprof,omitempty"`
}

// SchedulerConfig sizes the scheduler core. Changes need a restart.
type SchedulerConfig struct {
	MaxJobs       int    `json:"max_jobs"`
	MaxRunning    int    `json:"max_running"`
	Tick          string `json:"tick"`
	CommandBuffer int    `json:"command_buffer"`
	// Workdir is where programs are resolved ("./<program>") and run.
	Workdir string `json:"workdir"`
	// Resolve is "workdir" (only <workdir>/<program>) or "path" (also $PATH).
	Resolve string `json:"resolve"`
	MaxLine int    `json:"max_line"`
}

type ConsoleConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool  `json:"enabled,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
}

func (c ConsoleConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

type LoggingConfig struct {
	Level    string            `json:"level"`
	Console  bool              `json:"console"`
	File     LogFileConfig     `json:"file"`
	Telegram LogTelegramConfig `json:"telegram"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LogTelegramConfig forwards log records to telegram.group_log.
type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type TelegramConfig struct {
	Enabled      bool    `json:"enabled"`
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     int64   `json:"group_log,omitempty"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
	RatePerSec   float64 `json:"rate_per_sec,omitempty"`
	ReplyTimeout string  `json:"reply_timeout,omitempty"`
}

// StorageConfig enables the audit trail. Nil means disabled.
type StorageConfig struct {
	Driver      string `json:"driver"` // none | file | sqlite
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type TriggerConfig struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Argv     []string `json:"argv"`
	Enabled  bool     `json:"enabled"`
}

type SystemdConfig struct {
	Notify   bool `json:"notify"`
	Watchdog bool `json:"watchdog"`
}

type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// Defaults returns the configuration used when no file is given. Parse
// decodes files on top of it, so omitted fields keep these values.
func Defaults() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxJobs:       99,
			MaxRunning:    3,
			Tick:          "200ms",
			CommandBuffer: 64,
			Workdir:       ".",
			Resolve:       "workdir",
			MaxLine:       80,
		},
		Console: ConsoleConfig{Prompt: "jobsched> "},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LogFileConfig{Path: "./jobsched.log"},
			Telegram: LogTelegramConfig{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
		Telegram: TelegramConfig{
			PollTimeout:  "10s",
			RatePerSec:   1,
			ReplyTimeout: "10s",
		},
	}
}
