package pprof

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "jobsched/pkg/logx"
)

func TestNormalizePrefix(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"":        "/debug/pprof/",
		"dbg":     "/dbg/",
		"/dbg":    "/dbg/",
		" /x/y/ ": "/x/y/",
	}
	for in, want := range tests {
		if got := normalizePrefix(in); got != want {
			t.Fatalf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:6060": true,
		"[::1]:6060":     true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"10.0.0.5:6060":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func get(t *testing.T, h http.Handler, target, auth string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestHealthzAndAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{}, func() string { return "running=3 waiting=1" }, logx.Nop())
	h := s.handler(Config{Token: "secret"})

	if code, _ := get(t, h, "/healthz", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: code = %d", code)
	}
	if code, _ := get(t, h, "/healthz", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token: code = %d", code)
	}
	code, body := get(t, h, "/healthz", "secret")
	if code != http.StatusOK || strings.TrimSpace(body) != "ok running=3 waiting=1" {
		t.Fatalf("healthz = %d %q", code, body)
	}
	if code, _ := get(t, h, "/healthz?token=secret", ""); code != http.StatusOK {
		t.Fatalf("query token: code = %d", code)
	}
}

func TestIndexUnderCustomPrefix(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	h := s.handler(Config{Prefix: "/dbg"})
	code, body := get(t, h, "/dbg/", "")
	if code != http.StatusOK || !strings.Contains(body, "goroutine") {
		t.Fatalf("index = %d", code)
	}
}
