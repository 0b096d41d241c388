package eventbus

// Event types published by the scheduler.
const (
	TypeJobCreated   = "job.created"
	TypeJobQueued    = "job.queued"
	TypeJobStarted   = "job.started"
	TypeJobStopped   = "job.stopped"
	TypeJobPreempted = "job.preempted"
	TypeJobResumed   = "job.resumed"
	TypeJobKilled    = "job.killed"
	TypeJobExited    = "job.exited"
	TypeJobReleased  = "job.released"
	TypeCommand      = "command"
	TypeShutdown     = "scheduler.shutdown"
)

// JobEvent is the payload of job.* events.
type JobEvent struct {
	Ref      int      `json:"ref"`
	PID      int      `json:"pid"`
	Argv     []string `json:"argv"`
	Status   string   `json:"status"`
	Slot     int      `json:"slot"`
	Order    int64    `json:"order"`
	ExitCode int      `json:"exit_code,omitempty"`
	Signal   string   `json:"signal,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// CommandEvent is the payload of command events: one per dispatched record.
type CommandEvent struct {
	Source string   `json:"source"`
	Verb   string   `json:"verb"`
	Args   []string `json:"args,omitempty"`
	Error  string   `json:"error,omitempty"`
	TookMS int64    `json:"took_ms"`
}
