package app

import (
	"context"
	"strings"

	"jobsched/internal/config"
	logx "jobsched/pkg/logx"
)

// startReload applies published config changes. Logging, triggers,
// telegram owners/limits and pprof are applied live; sections in
// Change.Restart are only reported.
func (a *App) startReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts and keep only the newest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, cfg)
				last = cfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) config.Change {
	ch := config.SummarizeConfigChange(prev, cfg)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return ch
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("config changed; restart required for these sections",
			logx.String("sections", strings.Join(ch.Restart, ",")))
	}

	a.logs.Apply(mapLogConfig(cfg))

	if a.bot != nil {
		if tc, err := mapTelegramConfig(cfg); err != nil {
			a.log.Warn("invalid telegram config; keeping previous", logx.Err(err))
		} else {
			a.bot.Apply(tc)
		}
	}

	a.triggers.Apply(mapTriggerConfig(cfg))
	a.pprof.Reconfigure(ctx, mapPprofConfig(cfg))

	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
	return ch
}
