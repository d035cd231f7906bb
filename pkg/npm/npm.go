// Package npm drives the npm CLI for version queries, version bumps and
// publishing. Every call goes through a runner.Runner.
package npm

import (
	"context"
	"fmt"
	"strings"

	"github.com/holon-run/merge-release/pkg/log"
	"github.com/holon-run/merge-release/pkg/runner"
)

// Client runs npm commands.
type Client struct {
	runner runner.Runner
	// env is added to every invocation (auth token, user config path).
	env map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithEnv adds environment overrides to every npm invocation.
func WithEnv(env map[string]string) Option {
	return func(c *Client) {
		for k, v := range env {
			c.env[k] = v
		}
	}
}

// NewClient creates a new npm client.
func NewClient(r runner.Runner, opts ...Option) *Client {
	c := &Client{
		runner: r,
		env:    map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) npm(ctx context.Context, dir string, extraEnv map[string]string, args ...string) (string, error) {
	env := make(map[string]string, len(c.env)+len(extraEnv))
	for k, v := range c.env {
		env[k] = v
	}
	for k, v := range extraEnv {
		env[k] = v
	}
	return c.runner.Run(ctx, runner.Command{Name: "npm", Args: args, Dir: dir, Env: env})
}

// PublishedVersion returns the version registry reports as published for name.
func (c *Client) PublishedVersion(ctx context.Context, dir, name, registry string) (string, error) {
	out, err := c.npm(ctx, dir, registryEnv(registry), "view", name, "version")
	if err != nil {
		return "", fmt.Errorf("failed to query published version of %s from %s: %w", name, registry, err)
	}
	version := normalizeVersion(out)
	if version == "" {
		return "", fmt.Errorf("npm reported no published version for %s", name)
	}
	return version, nil
}

// SetVersion force-sets the manifest version in dir without creating a git tag.
func (c *Client) SetVersion(ctx context.Context, dir, version string) error {
	_, err := c.npm(ctx, dir, nil, "version", "--allow-same-version=true", "--git-tag-version=false", version)
	if err != nil {
		return fmt.Errorf("failed to set version %s in %s: %w", version, dir, err)
	}
	return nil
}

// Bump applies a major/minor/patch bump to the manifest in dir without
// creating a git tag, and returns the new version without a "v" prefix.
func (c *Client) Bump(ctx context.Context, dir, bump string) (string, error) {
	out, err := c.npm(ctx, dir, nil, "version", "--git-tag-version=false", bump)
	if err != nil {
		return "", fmt.Errorf("failed to apply %s bump in %s: %w", bump, dir, err)
	}
	version := normalizeVersion(out)
	if version == "" {
		return "", fmt.Errorf("npm version %s produced no version", bump)
	}
	return version, nil
}

// Publish publishes the package in dir to registry. The registry is passed as
// per-call environment so concurrent configuration files are never rewritten.
func (c *Client) Publish(ctx context.Context, dir, registry string) error {
	log.Progress("publishing package", "registry", registry, "dir", dir)

	_, err := c.npm(ctx, dir, registryEnv(registry), "publish")
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", registry, err)
	}
	return nil
}

// registryEnv points a single npm invocation at registry.
func registryEnv(registry string) map[string]string {
	return map[string]string{
		"NPM_REGISTRY_URL":    registry,
		"npm_config_registry": registry,
	}
}

// normalizeVersion takes the last non-empty line of npm output and strips a
// leading "v". npm lifecycle scripts may print before the version line.
func normalizeVersion(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	return strings.TrimPrefix(last, "v")
}
