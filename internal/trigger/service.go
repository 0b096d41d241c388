package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobsched/internal/command"
	logx "jobsched/pkg/logx"
)

// Def is one configured trigger.
type Def struct {
	Name     string
	Schedule string
	Argv     []string
	Enabled  bool
}

type Config struct {
	Timezone string
	Triggers []Def
}

const dropWarnThrottle = 5 * time.Second

// Service owns a cron instance whose entries submit run commands.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	log     logx.Logger
	cmds    chan<- command.Command
	c       *cron.Cron
	loc     *time.Location
	entries map[string]cron.EntryID

	warnMu   sync.Mutex
	lastWarn map[string]time.Time
	now      func() time.Time
}

func New(cfg Config, cmds chan<- command.Command, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		cmds:     cmds,
		entries:  map[string]cron.EntryID{},
		lastWarn: map[string]time.Time{},
		now:      time.Now,
	}
}

// Validate checks every enabled definition without registering anything.
func Validate(defs []Def) error {
	seen := map[string]bool{}
	for i, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return fmt.Errorf("triggers[%d]: name required", i)
		}
		if seen[name] {
			return fmt.Errorf("triggers[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if !d.Enabled {
			continue
		}
		if len(d.Argv) == 0 || strings.TrimSpace(d.Argv[0]) == "" {
			return fmt.Errorf("trigger %q: argv required", name)
		}
		if _, err := ParseSchedule(d.Schedule); err != nil {
			return fmt.Errorf("trigger %q: %w", name, err)
		}
	}
	return nil
}

// Start registers the enabled triggers and starts cron.
func (s *Service) Start(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.startLocked()
}

// Stop halts cron and waits for running entries, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entries = map[string]cron.EntryID{}
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("triggers stopped")
}

// Apply swaps in a new trigger set. A running service re-registers every
// entry against the (possibly new) timezone.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.startLocked()
}

// Entries returns the names of registered triggers.
func (s *Service) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}

// Next returns the next firing time of name, if registered.
func (s *Service) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[name]
	if !ok || s.c == nil {
		return time.Time{}, false
	}
	e := s.c.Entry(id)
	return e.Next, e.Valid()
}

func (s *Service) startLocked() {
	s.loc = s.location()
	s.c = cron.New(cron.WithParser(cronParser), cron.WithLocation(s.loc))
	s.entries = map[string]cron.EntryID{}
	now := time.Now().In(s.loc)
	for _, d := range s.cfg.Triggers {
		if !d.Enabled {
			continue
		}
		if err := s.addLocked(d, now); err != nil {
			s.log.Warn("trigger not registered", logx.String("trigger", d.Name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("triggers started", logx.String("tz", s.loc.String()), logx.Int("entries", len(s.entries)))
}

func (s *Service) addLocked(d Def, now time.Time) error {
	if len(d.Argv) == 0 {
		return fmt.Errorf("argv required")
	}
	sp, err := ParseSchedule(d.Schedule)
	if err != nil {
		return err
	}
	sched, err := sp.cronSchedule(now, d.Name)
	if err != nil {
		return err
	}
	def := Def{Name: d.Name, Schedule: d.Schedule, Argv: append([]string(nil), d.Argv...), Enabled: true}
	s.entries[d.Name] = s.c.Schedule(sched, cron.FuncJob(func() { s.fire(def) }))
	s.log.Debug("trigger registered",
		logx.String("trigger", d.Name),
		logx.String("kind", sp.Kind.String()),
		logx.Strings("argv", d.Argv),
		logx.Time("next", sched.Next(now)),
	)
	return nil
}

// fire submits one run command without blocking.
func (s *Service) fire(d Def) bool {
	c := command.Command{
		Verb:   command.Run,
		Argv:   append([]string(nil), d.Argv...),
		Source: "trigger:" + d.Name,
	}
	select {
	case s.cmds <- c:
		s.log.Debug("trigger fired", logx.String("trigger", d.Name))
		return true
	default:
		s.reportDrop(d.Name)
		return false
	}
}

func (s *Service) reportDrop(name string) {
	now := s.now()
	s.warnMu.Lock()
	last := s.lastWarn[name]
	if !last.IsZero() && now.Sub(last) < dropWarnThrottle {
		s.warnMu.Unlock()
		return
	}
	s.lastWarn[name] = now
	s.warnMu.Unlock()
	s.log.Warn("command channel full, trigger dropped", logx.String("trigger", name))
}

func (s *Service) location() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
