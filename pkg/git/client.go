// Package git wraps the system git binary for the operations a release needs:
// reading the commit range since the last release, restoring a manifest file
// and creating release tags. Every call goes through a runner.Runner.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/holon-run/merge-release/pkg/runner"
)

// ErrHistoryUnavailable is returned by Log when git cannot produce the
// requested range (unknown commit, shallow clone, rewritten history).
var ErrHistoryUnavailable = errors.New("commit history unavailable")

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
	logFormat = "--format=%H%x1f%s%x1f%b%x1e"
)

// Commit is one entry of a commit range.
type Commit struct {
	Hash    string
	Message string // subject line
	Body    string
}

// Client runs git in a fixed working directory.
type Client struct {
	dir      string
	runner   runner.Runner
	identity Identity
}

// Option configures a Client.
type Option func(*Client)

// WithIdentity sets the identity used for annotated tags.
func WithIdentity(id Identity) Option {
	return func(c *Client) {
		c.identity = id
	}
}

// NewClient creates a git client rooted at dir.
func NewClient(dir string, r runner.Runner, opts ...Option) *Client {
	c := &Client{
		dir:      dir,
		runner:   r,
		identity: ResolveIdentity(IdentityOptions{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) git(ctx context.Context, args ...string) (string, error) {
	return c.runner.Run(ctx, runner.Command{Name: "git", Args: args, Dir: c.dir})
}

// IsRepo reports whether the client directory is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	out, err := c.git(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// HeadSHA returns the full SHA of HEAD.
func (c *Client) HeadSHA(ctx context.Context) (string, error) {
	out, err := c.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Log returns the commits reachable from to but not from from, newest first.
// Any git failure is reported as ErrHistoryUnavailable wrapping the cause.
func (c *Client) Log(ctx context.Context, from, to string) ([]Commit, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: empty commit range %q..%q", ErrHistoryUnavailable, from, to)
	}

	out, err := c.git(ctx, "log", logFormat, from+".."+to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	return parseLog(out), nil
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimLeft(record, "\r\n")
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 3)
		commit := Commit{Hash: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			commit.Message = fields[1]
		}
		if len(fields) > 2 {
			commit.Body = strings.TrimRight(fields[2], "\r\n")
		}
		commits = append(commits, commit)
	}
	return commits
}

// RestoreFile discards working tree changes to file, relative to dir.
func (c *Client) RestoreFile(ctx context.Context, dir, file string) error {
	_, err := c.runner.Run(ctx, runner.Command{
		Name: "git",
		Args: []string{"checkout", "--", file},
		Dir:  dir,
	})
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", file, err)
	}
	return nil
}

// Tag creates an annotated tag name at commitish.
func (c *Client) Tag(ctx context.Context, name, commitish, message string) error {
	args := []string{
		"-c", "user.name=" + c.identity.Name,
		"-c", "user.email=" + c.identity.Email,
		"tag", "-a", name, "-m", message,
	}
	if commitish != "" {
		args = append(args, commitish)
	}

	if _, err := c.git(ctx, args...); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return nil
}
