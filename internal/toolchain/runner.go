package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/corge-build/corge/internal/msg"
)

// Runner spawns an external tool, waits for it and captures its output
type Runner interface {
	// Run returns the captured stdout. A non-zero exit yields a *ProcessError.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ProcessError is returned when a tool exits with a non-zero status
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("`%s` exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("`%s` exited with status %d:\n%s", e.Command, e.ExitCode, stderr)
}

// CommandLine renders a command for logs and error messages
func CommandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)
	return strings.Join(parts, " ")
}

// ExecRunner runs tools with os/exec
type ExecRunner struct {
	Log msg.Logger
	// Dir is the working directory, the current one when empty
	Dir string
}

func (r ExecRunner) logger() msg.Logger {
	if r.Log == nil {
		return msg.Discard{}
	}
	return r.Log
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	line := CommandLine(name, args)
	r.logger().Debug("%s", line)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &ProcessError{
				Command:  line,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return "", fmt.Errorf("failed to run `%s`: %w", line, err)
	}

	// warnings
	if s := strings.TrimSpace(stderr.String()); s != "" {
		r.logger().Warn("%s", s)
	}
	return stdout.String(), nil
}
