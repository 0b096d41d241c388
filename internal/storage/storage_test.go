package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "jobsched/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}

func TestStores(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "nested", "audit."+driver)
			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			ctx := context.Background()
			at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			entries := []Entry{
				{At: at, Kind: "command", Source: "console", Ref: -1, Argv: "run sleep 5", TookMS: 2},
				{At: at.Add(time.Second), Kind: "job.started", Ref: 0, PID: 4242, Argv: "sleep 5", Status: "Running"},
				{At: at.Add(2 * time.Second), Kind: "job.killed", Ref: 0, PID: 4242, Status: "Terminated", Error: "signal failed"},
			}
			for _, e := range entries {
				if err := st.Append(ctx, e); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			got, err := st.Recent(ctx, 2)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("Recent returned %d entries", len(got))
			}
			if got[0].Kind != "job.started" || got[1].Kind != "job.killed" {
				t.Fatalf("Recent order = %s, %s", got[0].Kind, got[1].Kind)
			}
			if got[0].PID != 4242 || got[0].Argv != "sleep 5" || !got[0].At.Equal(at.Add(time.Second)) {
				t.Fatalf("entry = %+v", got[0])
			}
			if got[1].Error != "signal failed" {
				t.Fatalf("error field lost: %+v", got[1])
			}
			if all, _ := st.Recent(ctx, 10); len(all) != 3 {
				t.Fatalf("Recent(10) = %d entries", len(all))
			}

			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("store file missing: %v", err)
			}
		})
	}
}

func TestFileStoreClosed(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = st.Close()
	if err := st.Append(context.Background(), Entry{Kind: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Append after Close = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
