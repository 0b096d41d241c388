package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "jobsched/pkg/logx"
)

// StopReason is logged when the app stops.
type StopReason string

const (
	StopUnknown     StopReason = "unknown"
	StopSignal      StopReason = "signal"
	StopExitCommand StopReason = "exit_command"
	StopFatalError  StopReason = "fatal_error"
)

// Stop shuts everything down in order: front ends and triggers first so no
// new commands arrive, then the loop (which terminates every job), then
// the audit trail and logging. Each step is bounded so one component
// cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifier.Stopping()

	a.sup.Cancel()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		if err := a.runStep(ctx, name, limit, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("triggers", 2*time.Second, func(c context.Context) error { a.triggers.Stop(c); return nil })
	step("telegram", 3*time.Second, func(c context.Context) error {
		if a.bot == nil {
			return nil
		}
		return a.bot.Stop(c)
	})
	step("pprof", time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	// The loop runs Exit on cancellation; wait for it and the other
	// supervised goroutines.
	step("supervisor", 5*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	step("audit", 2*time.Second, func(c context.Context) error {
		if a.rec == nil {
			return nil
		}
		return a.rec.stop(c)
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})

	a.log.Info("stopped",
		logx.String("reason", string(reason)),
		logx.Uint64("loop_iterations", a.stats.iterations.Load()),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

// runStep runs fn with at most limit of the caller's remaining time. A step
// that ignores its context is abandoned and reported.
func (a *App) runStep(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped (no time left)", logx.String("name", name))
		return context.DeadlineExceeded
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		took := time.Since(start)
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
		return err
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
		return stepCtx.Err()
	}
}
