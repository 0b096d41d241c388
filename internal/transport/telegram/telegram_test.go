package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"jobsched/internal/command"
	logx "jobsched/pkg/logx"
)

type sent struct {
	chat int64
	text string
}

type recorder struct {
	mu  sync.Mutex
	out []sent
}

func (r *recorder) send(_ context.Context, chat int64, text string) error {
	r.mu.Lock()
	r.out = append(r.out, sent{chat, text})
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.out...)
}

func newTestBot(cfg Config, cmds chan<- command.Command) (*Bot, *recorder) {
	rec := &recorder{}
	b := newBot(cfg, cmds, logx.Nop())
	b.send = rec.send
	return b, rec
}

func TestCommandText(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"list":              "list",
		"/list":             "list",
		"/list@jobbot":      "list",
		"/kill@jobbot 42":   "kill 42",
		"  /run sleep 5  ":  "run sleep 5",
		"/":                 "",
		"run echo /not/cmd": "run echo /not/cmd",
	}
	for in, want := range tests {
		if got := commandText(in); got != want {
			t.Fatalf("commandText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}
	line := strings.Repeat("a", 6)
	text := strings.Join([]string{line, line, line, line}, "\n") // 27 runes
	chunks := splitText(text, 14)
	for _, c := range chunks {
		if len([]rune(c)) > 14 {
			t.Fatalf("chunk too long: %q", c)
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk has edge newline: %q", c)
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatalf("chunks %q do not reassemble", chunks)
	}
}

func TestHandleOwnerCommand(t *testing.T) {
	t.Parallel()
	cmds := make(chan command.Command, 1)
	b, rec := newTestBot(Config{OwnerUserIDs: []int64{7}, RatePerSec: 100}, cmds)

	go func() {
		c := <-cmds
		c.Respond(command.Result{Text: "started pid 100 in slot 0"})
	}()
	b.handle(context.Background(), 555, 7, "/run sleep 5")

	got := rec.all()
	if len(got) != 1 || got[0].chat != 555 || got[0].text != "started pid 100 in slot 0" {
		t.Fatalf("replies = %+v", got)
	}
}

func TestHandleIgnoresStrangers(t *testing.T) {
	t.Parallel()
	cmds := make(chan command.Command, 1)
	b, rec := newTestBot(Config{OwnerUserIDs: []int64{7}}, cmds)
	b.handle(context.Background(), 1, 8, "list")
	if len(rec.all()) != 0 || len(cmds) != 0 {
		t.Fatal("stranger's message was served")
	}

	b.Apply(Config{OwnerUserIDs: []int64{7, 8}})
	go func() {
		c := <-cmds
		c.Respond(command.Result{Text: "no jobs"})
	}()
	b.handle(context.Background(), 1, 8, "list")
	if got := rec.all(); len(got) != 1 || got[0].text != "no jobs" {
		t.Fatalf("after Apply replies = %+v", got)
	}
}

func TestHandleErrors(t *testing.T) {
	t.Parallel()
	cmds := make(chan command.Command, 1)
	b, rec := newTestBot(Config{OwnerUserIDs: []int64{7}, RatePerSec: 100, ReplyTimeout: 50 * time.Millisecond}, cmds)

	b.handle(context.Background(), 1, 7, "stop zero")
	b.handle(context.Background(), 1, 7, "list") // nobody answers
	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("replies = %+v", got)
	}
	if !strings.Contains(got[0].text, "positive integer") {
		t.Fatalf("parse error reply = %q", got[0].text)
	}
	if !strings.Contains(got[1].text, "no reply") {
		t.Fatalf("timeout reply = %q", got[1].text)
	}
}

func TestHandleRateLimit(t *testing.T) {
	t.Parallel()
	cmds := make(chan command.Command, 4)
	b, rec := newTestBot(Config{OwnerUserIDs: []int64{7}, RatePerSec: 0.001, ReplyTimeout: time.Millisecond}, cmds)
	b.handle(context.Background(), 1, 7, "list")
	b.handle(context.Background(), 1, 7, "list")
	got := rec.all()
	if len(got) != 2 || !strings.Contains(got[1].text, "rate limited") {
		t.Fatalf("replies = %+v", got)
	}
	if len(cmds) != 1 {
		t.Fatalf("submitted %d commands, want 1", len(cmds))
	}
}

func TestSendLog(t *testing.T) {
	t.Parallel()
	b, rec := newTestBot(Config{}, nil)
	if err := b.SendLog(context.Background(), "[WARN] x"); err != nil || len(rec.all()) != 0 {
		t.Fatal("SendLog without a log chat should be a no-op")
	}
	b.Apply(Config{GroupLog: -100})
	if err := b.SendLog(context.Background(), "[WARN] x"); err != nil {
		t.Fatalf("SendLog: %v", err)
	}
	if got := rec.all(); len(got) != 1 || got[0].chat != -100 {
		t.Fatalf("sent = %+v", got)
	}
}
