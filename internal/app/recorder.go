package app

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"jobsched/internal/eventbus"
	"jobsched/internal/storage"
	logx "jobsched/pkg/logx"
)

const appendTimeout = 2 * time.Second

// recorder appends every bus event to the audit store. It runs outside
// the app supervisor so events published while the loop shuts down are
// still drained into the store before it closes.
type recorder struct {
	store  storage.Store
	log    logx.Logger
	events <-chan eventbus.Event
	unsub  func()

	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newRecorder(bus eventbus.Bus, store storage.Store, log logx.Logger) *recorder {
	events, unsub := bus.Subscribe(512)
	return &recorder{
		store:  store,
		log:    log,
		events: events,
		unsub:  unsub,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *recorder) start() { go r.run() }

func (r *recorder) run() {
	defer close(r.done)
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return
			}
			r.record(e)
		case <-r.stopCh:
			r.drain()
			return
		}
	}
}

func (r *recorder) drain() {
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return
			}
			r.record(e)
		default:
			return
		}
	}
}

func (r *recorder) record(e eventbus.Event) {
	entry, ok := entryFromEvent(e)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.store.Append(ctx, entry); err != nil {
		r.log.Warn("audit append failed", logx.String("kind", entry.Kind), logx.Err(err))
	}
}

// stop drains buffered events and waits for the recorder to finish.
func (r *recorder) stop(ctx context.Context) error {
	r.once.Do(func() { close(r.stopCh) })
	select {
	case <-r.done:
		r.unsub()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func entryFromEvent(e eventbus.Event) (storage.Entry, bool) {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	entry := storage.Entry{At: at, Kind: e.Type}
	switch d := e.Data.(type) {
	case eventbus.JobEvent:
		entry.Ref = d.Ref
		entry.PID = d.PID
		entry.Argv = strings.Join(d.Argv, " ")
		entry.Status = d.Status
		entry.Error = d.Error
		if e.Type == eventbus.TypeJobExited {
			entry.Status = exitText(d)
		}
	case eventbus.CommandEvent:
		entry.Source = d.Source
		entry.Argv = strings.TrimSpace(d.Verb + " " + strings.Join(d.Args, " "))
		entry.Error = d.Error
		entry.TookMS = d.TookMS
	case int:
		if e.Type != eventbus.TypeShutdown {
			return storage.Entry{}, false
		}
		entry.Status = "killed " + strconv.Itoa(d)
	default:
		return storage.Entry{}, false
	}
	return entry, true
}

func exitText(d eventbus.JobEvent) string {
	if d.Signal != "" {
		return d.Status + " (signal " + d.Signal + ")"
	}
	return d.Status + " (exit " + strconv.Itoa(d.ExitCode) + ")"
}
