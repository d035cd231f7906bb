package runner

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/holon-run/merge-release/pkg/logs/redact"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell based test")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_Run(t *testing.T) {
	requireShell(t)
	ctx := context.Background()
	r := NewExecRunner(nil)

	t.Run("captures stdout", func(t *testing.T) {
		out, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo 1.2.0"}})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if out != "1.2.0\n" {
			t.Errorf("Run() = %q, want %q", out, "1.2.0\n")
		}
	})

	t.Run("uses working directory", func(t *testing.T) {
		dir := t.TempDir()
		out, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "pwd"}, Dir: dir})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !strings.HasSuffix(strings.TrimSpace(out), strings.TrimPrefix(dir, "/private")) {
			t.Errorf("Run() pwd = %q, want suffix %q", out, dir)
		}
	})

	t.Run("applies env overrides", func(t *testing.T) {
		out, err := r.Run(ctx, Command{
			Name: "sh",
			Args: []string{"-c", "echo $NPM_REGISTRY_URL"},
			Env:  map[string]string{"NPM_REGISTRY_URL": "https://npm.pkg.github.com"},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if strings.TrimSpace(out) != "https://npm.pkg.github.com" {
			t.Errorf("Run() = %q", out)
		}
	})

	t.Run("non-zero exit returns CommandError", func(t *testing.T) {
		_, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			t.Fatalf("expected *CommandError, got %T (%v)", err, err)
		}
		if cmdErr.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
		}
		if !strings.Contains(cmdErr.Error(), "boom") {
			t.Errorf("Error() = %q, want stderr included", cmdErr.Error())
		}
	})

	t.Run("missing binary returns CommandError", func(t *testing.T) {
		_, err := r.Run(ctx, Command{Name: "merge-release-definitely-missing"})
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			t.Fatalf("expected *CommandError, got %T", err)
		}
		if cmdErr.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0 for start failure", cmdErr.ExitCode)
		}
	})
}

func TestExecRunner_RedactsStderr(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(redact.New(redact.Config{Secrets: []string{"tok-123456"}}))

	_, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo 'bad token tok-123456' >&2; exit 1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "tok-123456") {
		t.Errorf("error leaked secret: %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "NPM_REGISTRY_URL=old"}
	got := MergeEnv(base,
		map[string]string{"NPM_REGISTRY_URL": "base"},
		map[string]string{"NPM_REGISTRY_URL": "https://registry.npmjs.org/", "npm_config_registry": "x"},
	)
	want := []string{"PATH=/bin", "HOME=/root", "NPM_REGISTRY_URL=https://registry.npmjs.org/", "npm_config_registry=x"}

	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("MergeEnv() = %v, want %v", got, want)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "npm", Args: []string{"version", "minor"}}
	if c.String() != "npm version minor" {
		t.Errorf("String() = %q", c.String())
	}
	if (Command{Name: "git"}).String() != "git" {
		t.Error("String() without args should be the name")
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{Handler: func(cmd Command) (string, error) {
		if cmd.Name == "npm" {
			return "1.0.0\n", nil
		}
		return "", errors.New("unexpected")
	}}

	out, err := rec.Run(context.Background(), Command{Name: "npm", Args: []string{"view"}})
	if err != nil || out != "1.0.0\n" {
		t.Fatalf("Run() = %q, %v", out, err)
	}
	if _, err := rec.Run(context.Background(), Command{Name: "git"}); err == nil {
		t.Error("expected handler error")
	}
	if n := len(rec.Commands()); n != 2 {
		t.Errorf("recorded %d commands, want 2", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rec.Run(ctx, Command{Name: "npm"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
