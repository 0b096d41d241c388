//go:build !unix

package proc

// OS is unavailable without SIGSTOP/SIGCONT; Spawn always fails.
type OS struct {
	Workdir string
	Mode    ResolveMode
	Env     []string
}

func (o *OS) Spawn(argv []string) (Handle, error) {
	_ = argv
	return nil, ErrUnsupported
}
