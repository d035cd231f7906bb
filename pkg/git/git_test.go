package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holon-run/merge-release/pkg/runner"
)

// setupTestRepo creates a temporary git repository with a package.json commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	tmpDir := t.TempDir()
	gitCmd(t, tmpDir, "init")
	gitCmd(t, tmpDir, "config", "user.name", "Test User")
	gitCmd(t, tmpDir, "config", "user.email", "test@example.com")
	gitCmd(t, tmpDir, "config", "commit.gpgsign", "false")
	gitCmd(t, tmpDir, "config", "tag.gpgsign", "false")

	writeFile(t, filepath.Join(tmpDir, "package.json"), `{"name":"demo","version":"1.0.0"}`)
	gitCmd(t, tmpDir, "add", "package.json")
	gitCmd(t, tmpDir, "commit", "-m", "initial commit")

	return tmpDir
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v, output: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func commitFile(t *testing.T, dir, name, message string) string {
	t.Helper()
	writeFile(t, filepath.Join(dir, name), message)
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "-m", message)
	return gitCmd(t, dir, "rev-parse", "HEAD")
}

func TestClient_IsRepo(t *testing.T) {
	ctx := context.Background()
	r := runner.NewExecRunner(nil)

	t.Run("valid git repository", func(t *testing.T) {
		repoDir := setupTestRepo(t)
		if !NewClient(repoDir, r).IsRepo(ctx) {
			t.Error("expected directory to be a git repository")
		}
	})

	t.Run("non-git directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		if NewClient(tmpDir, r).IsRepo(ctx) {
			t.Error("expected directory to not be a git repository")
		}
	})
}

func TestClient_HeadSHA(t *testing.T) {
	repoDir := setupTestRepo(t)
	sha, err := NewClient(repoDir, runner.NewExecRunner(nil)).HeadSHA(context.Background())
	if err != nil {
		t.Fatalf("HeadSHA failed: %v", err)
	}
	if len(sha) != 40 {
		t.Errorf("expected SHA length 40, got %d (%q)", len(sha), sha)
	}
}

func TestClient_Log(t *testing.T) {
	ctx := context.Background()
	repoDir := setupTestRepo(t)
	base := gitCmd(t, repoDir, "rev-parse", "HEAD")

	commitFile(t, repoDir, "a.txt", "fix: handle empty input")
	writeFile(t, filepath.Join(repoDir, "b.txt"), "b")
	gitCmd(t, repoDir, "add", "b.txt")
	gitCmd(t, repoDir, "commit", "-m", "feat: add thing", "-m", "BREAKING CHANGE: removes old thing")
	head := gitCmd(t, repoDir, "rev-parse", "HEAD")

	client := NewClient(repoDir, runner.NewExecRunner(nil))

	t.Run("range excludes from and includes to", func(t *testing.T) {
		commits, err := client.Log(ctx, base, head)
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
		if len(commits) != 2 {
			t.Fatalf("expected 2 commits, got %d: %+v", len(commits), commits)
		}
		if commits[0].Hash != head {
			t.Errorf("expected newest commit first, got %s", commits[0].Hash)
		}
		if commits[0].Message != "feat: add thing" {
			t.Errorf("Message = %q", commits[0].Message)
		}
		if commits[0].Body != "BREAKING CHANGE: removes old thing" {
			t.Errorf("Body = %q", commits[0].Body)
		}
		if commits[1].Message != "fix: handle empty input" || commits[1].Body != "" {
			t.Errorf("unexpected second commit: %+v", commits[1])
		}
	})

	t.Run("same commit yields empty range", func(t *testing.T) {
		commits, err := client.Log(ctx, head, head)
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
		if len(commits) != 0 {
			t.Errorf("expected no commits, got %d", len(commits))
		}
	})

	t.Run("unknown commit is history unavailable", func(t *testing.T) {
		_, err := client.Log(ctx, strings.Repeat("0", 40), head)
		if !errors.Is(err, ErrHistoryUnavailable) {
			t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
		}
		var cmdErr *runner.CommandError
		if !errors.As(err, &cmdErr) {
			t.Errorf("expected wrapped *runner.CommandError, got %v", err)
		}
	})

	t.Run("empty range bound", func(t *testing.T) {
		if _, err := client.Log(ctx, "", head); !errors.Is(err, ErrHistoryUnavailable) {
			t.Errorf("expected ErrHistoryUnavailable, got %v", err)
		}
	})
}

func TestClient_RestoreFile(t *testing.T) {
	ctx := context.Background()
	repoDir := setupTestRepo(t)
	manifest := filepath.Join(repoDir, "package.json")

	writeFile(t, manifest, `{"name":"demo","version":"1.3.0"}`)

	client := NewClient(repoDir, runner.NewExecRunner(nil))
	if err := client.RestoreFile(ctx, repoDir, "package.json"); err != nil {
		t.Fatalf("RestoreFile failed: %v", err)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"name":"demo","version":"1.0.0"}` {
		t.Errorf("manifest not restored: %s", data)
	}
}

func TestClient_Tag(t *testing.T) {
	ctx := context.Background()
	repoDir := setupTestRepo(t)
	head := gitCmd(t, repoDir, "rev-parse", "HEAD")

	client := NewClient(repoDir, runner.NewExecRunner(nil), WithIdentity(Identity{Name: "Release Bot", Email: "release@example.com"}))
	if err := client.Tag(ctx, "v1.3.0", head, "automatic release of v1.3.0"); err != nil {
		t.Fatalf("Tag failed: %v", err)
	}

	if got := gitCmd(t, repoDir, "rev-list", "-n", "1", "v1.3.0"); got != head {
		t.Errorf("tag points at %s, want %s", got, head)
	}
	if got := gitCmd(t, repoDir, "tag", "-l", "--format=%(contents:subject)|%(taggername)", "v1.3.0"); got != "automatic release of v1.3.0|Release Bot" {
		t.Errorf("unexpected tag metadata %q", got)
	}

	if err := client.Tag(ctx, "v1.3.0", head, "again"); err == nil {
		t.Error("expected error when tag already exists")
	}
}

func TestClient_UsesRunner(t *testing.T) {
	rec := &runner.Recorder{Handler: func(cmd runner.Command) (string, error) {
		return "abc\x1ffeat: x\x1fbody line\n\x1e\ndef\x1ffix: y\x1f\x1e\n", nil
	}}
	client := NewClient("/repo", rec)

	commits, err := client.Log(context.Background(), "aaa", "bbb")
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(commits) != 2 || commits[0].Body != "body line" || commits[1].Message != "fix: y" {
		t.Errorf("unexpected commits: %+v", commits)
	}

	cmds := rec.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Dir != "/repo" || cmds[0].Args[len(cmds[0].Args)-1] != "aaa..bbb" {
		t.Errorf("unexpected command %+v", cmds[0])
	}
}
