package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveMode selects how the program name of a run request is located.
type ResolveMode string

const (
	// ResolveWorkdir runs <workdir>/<program>, the "./program" convention.
	ResolveWorkdir ResolveMode = "workdir"
	// ResolvePath tries <workdir>/<program> first, then $PATH.
	ResolvePath ResolveMode = "path"
)

// ParseResolveMode accepts "", "workdir" and "path".
func ParseResolveMode(s string) (ResolveMode, error) {
	switch ResolveMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResolveWorkdir:
		return ResolveWorkdir, nil
	case ResolvePath:
		return ResolvePath, nil
	default:
		return "", fmt.Errorf("unknown resolve mode %q (want workdir or path)", s)
	}
}

// Resolve returns the absolute executable path for program.
// Names containing a slash are taken relative to workdir (or as-is when absolute).
func Resolve(workdir, program string, mode ResolveMode) (string, error) {
	if strings.TrimSpace(program) == "" {
		return "", errors.New("empty program name")
	}
	if workdir == "" {
		workdir = "."
	}
	if filepath.IsAbs(program) {
		return program, checkExecutable(program)
	}
	local, err := filepath.Abs(filepath.Join(workdir, program))
	if err != nil {
		return "", err
	}
	errLocal := checkExecutable(local)
	if errLocal == nil {
		return local, nil
	}
	if mode != ResolvePath || strings.ContainsRune(program, '/') {
		return "", errLocal
	}
	p, err := exec.LookPath(program)
	if err != nil {
		return "", err
	}
	return p, nil
}

func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if fi.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
