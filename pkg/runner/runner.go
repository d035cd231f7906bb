// Package runner executes external collaborator commands (git, npm) behind a
// narrow synchronous interface so release logic never spawns processes itself.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/holon-run/merge-release/pkg/log"
	"github.com/holon-run/merge-release/pkg/logs/redact"
)

// Command describes one external command invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env holds per-call overrides layered on top of the process environment.
	Env map[string]string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner runs a command and returns its captured stdout.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// CommandError is returned when a command cannot be started or exits non-zero.
type CommandError struct {
	Command  Command
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", e.Command.String())
	if e.Command.Dir != "" {
		msg += fmt.Sprintf(" in %s", e.Command.Dir)
	}
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	// Redactor scrubs stderr before it is stored in a CommandError.
	Redactor *redact.Redactor
}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner(redactor *redact.Redactor) *ExecRunner {
	return &ExecRunner{Redactor: redactor}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("running command", "cmd", c.String(), "dir", c.Dir)

	if err := cmd.Run(); err != nil {
		cmdErr := &CommandError{
			Command: c,
			Stderr:  r.Redactor.String(stderr.String()),
			Err:     err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return "", cmdErr
	}

	return stdout.String(), nil
}

// MergeEnv layers override maps onto a KEY=VALUE environment list. Later maps
// win; the output is deterministic (base order, then new keys sorted).
func MergeEnv(base []string, overrides ...map[string]string) []string {
	merged := make(map[string]string)
	for _, o := range overrides {
		for k, v := range o {
			merged[k] = v
		}
	}

	out := make([]string, 0, len(base)+len(merged))
	seen := make(map[string]bool, len(merged))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := merged[key]; ok {
			if !seen[key] {
				out = append(out, key+"="+v)
				seen[key] = true
			}
			continue
		}
		out = append(out, kv)
	}

	var extra []string
	for k := range merged {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, k+"="+merged[k])
	}

	return out
}
