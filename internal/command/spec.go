// Package command builds argv-shaped commands and runs them either
// blocking-with-captured-output or detached.
package command

import (
	"os/exec"
	"strings"
)

// Spec is an executable plus an ordered sequence of argv tokens.
type Spec struct {
	Executable string
	Args       []string
}

// New builds a Spec from an executable and its arguments.
func New(executable string, args ...string) Spec {
	return Spec{Executable: executable, Args: append([]string(nil), args...)}
}

// WithArgs returns a copy of s with extra arguments appended.
func (s Spec) WithArgs(args ...string) Spec {
	return Spec{Executable: s.Executable, Args: append(append([]string(nil), s.Args...), args...)}
}

// String renders the command the way it would be typed in a shell, for
// logging and history purposes only; it is never re-parsed.
func (s Spec) String() string {
	parts := append([]string{s.Executable}, s.Args...)
	return strings.Join(parts, " ")
}

// Verify reports whether the executable resolves: an absolute/relative path
// that exists, or a name resolvable on PATH.
func (s Spec) Verify() bool {
	if s.Executable == "" {
		return false
	}
	if strings.ContainsRune(s.Executable, '/') {
		_, err := exec.LookPath(s.Executable)
		return err == nil
	}
	_, err := exec.LookPath(s.Executable)
	return err == nil
}
