package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"jobsched/internal/command"
	"jobsched/internal/config"
	"jobsched/internal/eventbus"
	"jobsched/internal/observability/pprof"
	"jobsched/internal/proc"
	rtsup "jobsched/internal/runtime/supervisor"
	"jobsched/internal/sched"
	"jobsched/internal/storage"
	"jobsched/internal/systemd"
	"jobsched/internal/transport/console"
	"jobsched/internal/transport/telegram"
	"jobsched/internal/trigger"
	logx "jobsched/pkg/logx"
)

// Options are the process-level inputs of an App. Zero values mean the
// real terminal and real processes.
type Options struct {
	ConfigPath string
	Stdin      io.Reader
	Stdout     io.Writer
	// Spawner replaces the OS process adapter.
	Spawner proc.Spawner
}

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	rec   *recorder

	cmds  chan command.Command
	sched *sched.Scheduler
	loop  *sched.Loop

	console  *console.Console
	bot      *telegram.Bot
	triggers *trigger.Service
	notifier *systemd.Notifier
	pprof    *pprof.Service

	stats stats
}

// stats mirrors scheduler occupancy for readers outside the loop
// goroutine (health endpoint, systemd status).
type stats struct {
	running    atomic.Int64
	waiting    atomic.Int64
	iterations atomic.Uint64
	status     atomic.Value // last STATUS= text sent
}

func (s *stats) String() string {
	return fmt.Sprintf("running=%d waiting=%d iterations=%d",
		s.running.Load(), s.waiting.Load(), s.iterations.Load())
}

func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	sc, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.NewService(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	a := &App{
		cfgm: cfgm,
		log:  appLog,
		logs: logSvc,
		bus:  eventbus.New(),
		cmds: make(chan command.Command, sc.CommandBuffer),
	}

	if stc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(stc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		a.rec = newRecorder(a.bus, st, log.With(logx.String("comp", "audit")))
		appLog.Info("audit trail enabled", logx.String("driver", stc.Driver))
	}

	spawner := opts.Spawner
	if spawner == nil {
		spawner = &proc.OS{Workdir: sc.Workdir, Mode: sc.Resolve}
	}
	s, err := sched.New(sched.Options{
		MaxJobs:    sc.MaxJobs,
		MaxRunning: sc.MaxRunning,
		Spawner:    spawner,
		Bus:        a.bus,
		Log:        log.With(logx.String("comp", "sched")),
	})
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.sched = s

	a.notifier = systemd.New(mapSystemdConfig(cfg), log.With(logx.String("comp", "systemd")))
	a.loop = sched.NewLoop(s, a.cmds, sched.LoopOptions{
		Tick:        sc.Tick,
		Bus:         a.bus,
		Log:         log.With(logx.String("comp", "loop")),
		OnStart:     a.onLoopStart,
		OnIteration: a.onIteration,
	})

	if cfg.Console.IsEnabled() {
		in, out := opts.Stdin, opts.Stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		a.console = console.New(console.Options{
			Prompt:  cfg.Console.Prompt,
			In:      in,
			Out:     out,
			MaxLine: sc.MaxLine,
		}, a.cmds, log.With(logx.String("comp", "console")))
	}

	if cfg.Telegram.Enabled {
		tc, err := mapTelegramConfig(cfg)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		bot, err := telegram.New(tc, a.cmds, log.With(logx.String("comp", "telegram")))
		if err != nil {
			a.closeStore()
			return nil, err
		}
		a.bot = bot
		logSvc.SetSender(bot)
	}

	a.triggers = trigger.New(mapTriggerConfig(cfg), a.cmds, log.With(logx.String("comp", "trigger")))
	a.pprof = pprof.New(mapPprofConfig(cfg), a.stats.String, log.With(logx.String("comp", "pprof")))
	return a, nil
}

// Done is closed once the app stops running: the scheduler exited, a
// component failed, or the start context was canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error, e.g. a job that could not be
// suspended after spawn.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Submit queues a command for the control loop. It is how embedders and
// tests talk to a running app without a front end.
func (a *App) Submit(ctx context.Context, c command.Command) error {
	select {
	case a.cmds <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if a.rec != nil {
		a.rec.start()
	}

	// The loop owns the scheduler. Whatever ends it ends the app.
	a.sup.Go("sched.loop", func(c context.Context) error {
		defer a.sup.Cancel()
		return a.loop.Run(c)
	})

	if a.console != nil {
		a.sup.Go("console", a.console.Run)
	}
	if a.bot != nil {
		if err := a.bot.Start(a.sup.Context()); err != nil {
			a.sup.Cancel()
			return err
		}
	}
	a.triggers.Start(a.sup.Context())
	a.pprof.Start(a.sup.Context())

	a.startReload()
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Int("max_jobs", a.cfgm.Get().Scheduler.MaxJobs),
		logx.Int("max_running", a.cfgm.Get().Scheduler.MaxRunning),
		logx.Bool("console", a.console != nil),
		logx.Bool("telegram", a.bot != nil),
		logx.Int("triggers", len(a.triggers.Entries())),
	)
	return nil
}

func (a *App) onLoopStart() {
	a.notifier.Ready()
	a.notifier.Status("idle")
}

// onIteration runs on the loop goroutine after every iteration.
func (a *App) onIteration() {
	running, waiting := a.sched.Running(), a.sched.Waiting()
	a.stats.running.Store(int64(running))
	a.stats.waiting.Store(int64(waiting))
	a.stats.iterations.Add(1)

	a.notifier.Keepalive()
	text := fmt.Sprintf("%d running, %d waiting", running, waiting)
	if prev, _ := a.stats.status.Load().(string); prev != text {
		a.stats.status.Store(text)
		a.notifier.Status(text)
	}
}

func (a *App) closeStore() {
	if a.rec != nil {
		a.rec.unsub()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
