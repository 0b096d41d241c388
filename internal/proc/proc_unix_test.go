//go:build unix

package proc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func waitExit(t *testing.T, h Handle) ExitStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := h.TryWait(); ok {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("process %d did not exit", h.PID())
	return ExitStatus{}
}

func TestOSSpawnExitCode(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "fail", "exit 3")

	sp := &OS{Workdir: dir, Mode: ResolveWorkdir}
	h, err := sp.Spawn([]string{"fail"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if h.PID() <= 0 {
		t.Fatalf("pid = %d", h.PID())
	}
	st := waitExit(t, h)
	if st.Code != 3 || st.Signal != "" {
		t.Fatalf("status = %+v, want exit 3", st)
	}
	if err := h.Terminate(); err != ErrExited {
		t.Fatalf("Terminate after exit = %v, want ErrExited", err)
	}
}

func TestOSSuspendResumeTerminate(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "nap", "sleep 30")

	sp := &OS{Workdir: dir, Mode: ResolveWorkdir}
	h, err := sp.Spawn([]string{"nap"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := h.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if _, ok := h.TryWait(); ok {
		t.Fatal("suspended process reported as exited")
	}
	if err := h.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	st := waitExit(t, h)
	if st.Signal == "" {
		t.Fatalf("status = %+v, want terminated by signal", st)
	}
}

func TestOSSpawnMissingProgram(t *testing.T) {
	sp := &OS{Workdir: t.TempDir(), Mode: ResolveWorkdir}
	if _, err := sp.Spawn([]string{"does-not-exist"}); err == nil {
		t.Fatal("expected spawn error for missing program")
	}
	if _, err := sp.Spawn(nil); err == nil {
		t.Fatal("expected spawn error for empty argv")
	}
}

func TestResolveModes(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "local", "true")
	if err := os.WriteFile(filepath.Join(dir, "plain"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got, err := Resolve(dir, "local", ResolveWorkdir); err != nil || got != filepath.Join(dir, "local") {
		t.Fatalf("Resolve(local) = %q, %v", got, err)
	}
	if _, err := Resolve(dir, "plain", ResolveWorkdir); err == nil {
		t.Fatal("non-executable file should not resolve")
	}
	if _, err := Resolve(dir, "sh", ResolveWorkdir); err == nil {
		t.Fatal("workdir mode must not search PATH")
	}
	if _, err := Resolve(dir, "sh", ResolvePath); err != nil {
		t.Fatalf("path mode should find sh: %v", err)
	}
	if _, err := ParseResolveMode("nope"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
