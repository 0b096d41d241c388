package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": append-only JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one audit record.
type Entry struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`             // event type, e.g. "job.started" or "command"
	Source string    `json:"source,omitempty"` // command source
	Ref    int       `json:"ref"`
	PID    int       `json:"pid,omitempty"`
	Argv   string    `json:"argv,omitempty"`
	Status string    `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms,omitempty"`
}
