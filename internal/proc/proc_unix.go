//go:build unix

package proc

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// OS spawns real processes. Each child gets its own process group so
// terminal-generated signals reach only the scheduler.
type OS struct {
	Workdir string
	Mode    ResolveMode
	Env     []string // nil inherits the scheduler environment
}

func (o *OS) Spawn(argv []string) (Handle, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}
	path, err := Resolve(o.Workdir, argv[0], o.Mode)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, argv[1:]...)
	cmd.Args[0] = argv[0]
	cmd.Dir = o.Workdir
	cmd.Env = o.Env
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &osHandle{cmd: cmd, done: make(chan struct{})}
	// The waiter collects the child as soon as it exits, so killed or
	// preempted processes never linger as zombies.
	go h.wait()
	return h, nil
}

type osHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu     sync.Mutex
	status ExitStatus
}

func (h *osHandle) wait() {
	err := h.cmd.Wait()
	st := ExitStatus{Code: 0}
	if ps := h.cmd.ProcessState; ps != nil {
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			st = ExitStatus{Code: -1, Signal: ws.Signal().String()}
		} else {
			st.Code = ps.ExitCode()
		}
	} else if err != nil {
		st.Code = -1
	}
	h.mu.Lock()
	h.status = st
	h.mu.Unlock()
	close(h.done)
}

func (h *osHandle) PID() int { return h.cmd.Process.Pid }

func (h *osHandle) Suspend() error   { return h.signal(syscall.SIGSTOP) }
func (h *osHandle) Resume() error    { return h.signal(syscall.SIGCONT) }
func (h *osHandle) Terminate() error { return h.signal(syscall.SIGTERM) }

func (h *osHandle) signal(sig syscall.Signal) error {
	select {
	case <-h.done:
		return ErrExited
	default:
	}
	err := h.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return ErrExited
	}
	return err
}

func (h *osHandle) TryWait() (ExitStatus, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.status, true
	default:
		return ExitStatus{}, false
	}
}
