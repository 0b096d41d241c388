package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerWithFieldsAreApplied(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "sched"), Int("slot", 2))
	log.Info("job started", Int("pid", 4242), Strings("argv", []string{"sleep", "5"}))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%q)", err, buf.String())
	}
	if rec["comp"] != "sched" || rec["message"] != "job started" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["pid"] != float64(4242) || rec["slot"] != float64(2) {
		t.Fatalf("numeric fields missing: %v", rec)
	}
}

func TestTypedFields(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	NewWriter(&buf, "info").Info("stopped",
		Uint64("loop_iterations", 1<<40),
		Time("next", at),
		Any("panic", "boom"),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%q)", err, buf.String())
	}
	if rec["loop_iterations"] != float64(1<<40) {
		t.Fatalf("loop_iterations = %v", rec["loop_iterations"])
	}
	if next, _ := rec["next"].(string); !strings.HasPrefix(next, "2026-01-02T03:04:05") {
		t.Fatalf("next = %v", rec["next"])
	}
	if rec["panic"] != "boom" {
		t.Fatalf("panic = %v", rec["panic"])
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	log.Error("dropped")
	if log.With(String("k", "v")).IsZero() {
		t.Fatal("logger with fields should not be zero")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	if log.Enabled(LevelDebug) {
		t.Fatal("debug should be disabled at warn level")
	}
}

func TestFormatRecord(t *testing.T) {
	line := []byte(`{"level":"warn","time":"x","caller":"a.go:1","message":"signal failed","pid":12,"action":"stop"}` + "\n")
	got := formatRecord(line)
	want := "[WARN] signal failed\n- action=stop\n- pid=12"
	if got != want {
		t.Fatalf("formatRecord = %q, want %q", got, want)
	}
	if got := formatRecord([]byte("plain text\n")); got != "plain text" {
		t.Fatalf("non-JSON record = %q", got)
	}
}

type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSender) SendLog(_ context.Context, text string) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, text)
	c.mu.Unlock()
	return nil
}

func TestRemoteWriterRespectsMinLevelAndRate(t *testing.T) {
	svc := &Service{remoteQueue: make(chan string, 8)}
	svc.Apply(Config{Level: "debug", Remote: RemoteConfig{Enabled: false, MinLevel: "warn", RatePerSec: 1}})
	svc.SetSender(&captureSender{})
	w := &remoteWriter{svc: svc}

	rec := []byte(`{"level":"info","message":"below"}`)
	if _, err := w.WriteLevel(zerolog.InfoLevel, rec); err != nil {
		t.Fatal(err)
	}
	if len(svc.remoteQueue) != 0 {
		t.Fatal("info record should be filtered by min level")
	}

	rec = []byte(`{"level":"error","message":"above"}`)
	_, _ = w.WriteLevel(zerolog.ErrorLevel, rec)
	_, _ = w.WriteLevel(zerolog.ErrorLevel, rec)
	if got := len(svc.remoteQueue); got != 1 {
		t.Fatalf("queued = %d, want 1 (burst of 1)", got)
	}
	if msg := <-svc.remoteQueue; msg != "[ERROR] above" {
		t.Fatalf("queued message = %q", msg)
	}
}
