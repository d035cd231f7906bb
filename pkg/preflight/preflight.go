package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/holon-run/merge-release/pkg/log"
	"github.com/holon-run/merge-release/pkg/manifest"
)

// CheckLevel represents the severity level of a preflight check
type CheckLevel int

const (
	// LevelError indicates a critical failure that prevents execution
	LevelError CheckLevel = iota
	// LevelWarn indicates a warning that should be addressed but doesn't block execution
	LevelWarn
	// LevelInfo indicates informational output
	LevelInfo
)

// CheckResult represents the result of a single preflight check
type CheckResult struct {
	Name    string     // Check name
	Level   CheckLevel // Severity level
	Message string     // Human-readable message
	Error   error      // Underlying error (if any)
}

// Check represents a single preflight check
type Check interface {
	// Name returns the check name
	Name() string
	// Run executes the check and returns a CheckResult
	Run(ctx context.Context) CheckResult
}

// Checker runs a collection of preflight checks
type Checker struct {
	checks  []Check
	skipped bool
	quiet   bool
}

// Config configures the preflight checker
type Config struct {
	// Skip skips all preflight checks
	Skip bool
	// Quiet suppresses info-level messages
	Quiet bool
	// RequireGit checks that git is on PATH
	RequireGit bool
	// RequireNPM checks that npm is on PATH
	RequireNPM bool
	// DeployDir and SrcPackageDir must contain a package.json
	DeployDir     string
	SrcPackageDir string
	// NPMAuthToken is checked when RequireNPMToken is set
	RequireNPMToken bool
	NPMAuthToken    string
	// GitHubToken is checked when RequireGitHubToken is set
	RequireGitHubToken bool
	GitHubToken        string
	// GitRepo reports whether DeployDir is a git work tree. A missing work tree is an
	// error when RequireGitRepo is set and a warning otherwise.
	GitRepo        RepoDetector
	RequireGitRepo bool
	// OutputPath is the GITHUB_OUTPUT file, if any
	OutputPath string
	// Registry is checked for reachability (warning only)
	Registry string
}

// NewChecker creates a new preflight checker with the given configuration
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		skipped: cfg.Skip,
		quiet:   cfg.Quiet,
	}

	if cfg.RequireGit {
		c.checks = append(c.checks, &ToolCheck{Tool: "git", InstallHint: "https://git-scm.com/downloads"})
	}
	if cfg.RequireNPM {
		c.checks = append(c.checks, &ToolCheck{Tool: "npm", InstallHint: "https://docs.npmjs.com/downloading-and-installing-node-js-and-npm"})
	}
	if cfg.DeployDir != "" {
		c.checks = append(c.checks, &PackageDirCheck{Label: "deploy-dir", Path: cfg.DeployDir})
	}
	if cfg.DeployDir != "" && cfg.GitRepo != nil {
		c.checks = append(c.checks, &GitRepoCheck{Path: cfg.DeployDir, Repo: cfg.GitRepo, Required: cfg.RequireGitRepo})
	}
	if cfg.SrcPackageDir != "" && cfg.SrcPackageDir != cfg.DeployDir {
		c.checks = append(c.checks, &PackageDirCheck{Label: "src-package-dir", Path: cfg.SrcPackageDir})
	}
	if cfg.RequireNPMToken {
		c.checks = append(c.checks, &TokenCheck{Label: "npm-token", Env: "NPM_AUTH_TOKEN", Value: cfg.NPMAuthToken})
	}
	if cfg.RequireGitHubToken {
		c.checks = append(c.checks, &TokenCheck{Label: "github-token", Env: "GITHUB_TOKEN", Value: cfg.GitHubToken})
	}
	if cfg.OutputPath != "" {
		c.checks = append(c.checks, &OutputCheck{Path: cfg.OutputPath})
	}
	if cfg.Registry != "" {
		c.checks = append(c.checks, &RegistryCheck{URL: cfg.Registry})
	}

	return c
}

// Checks returns the registered checks.
func (c *Checker) Checks() []Check {
	return c.checks
}

// Run executes all registered checks and returns an error if any critical checks fail
func (c *Checker) Run(ctx context.Context) error {
	if c.skipped {
		log.Info("preflight checks skipped")
		return nil
	}

	log.Progress("running preflight checks")

	var errs []error
	var warnings []string

	for _, check := range c.checks {
		result := check.Run(ctx)

		switch result.Level {
		case LevelError:
			log.Error("preflight check failed", "check", result.Name, "message", result.Message)
			if result.Error != nil {
				errs = append(errs, fmt.Errorf("%s: %s: %w", result.Name, result.Message, result.Error))
			} else {
				errs = append(errs, fmt.Errorf("%s: %s", result.Name, result.Message))
			}
		case LevelWarn:
			log.Warn("preflight check warning", "check", result.Name, "message", result.Message)
			warnings = append(warnings, fmt.Sprintf("%s: %s", result.Name, result.Message))
		case LevelInfo:
			if !c.quiet {
				log.Info("preflight check", "check", result.Name, "message", result.Message)
			}
		}
	}

	if len(warnings) > 0 {
		log.Info("preflight warnings", "count", len(warnings))
	}

	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("preflight checks failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}

	log.Progress("preflight checks passed")
	return nil
}

// ToolCheck checks that a command-line tool is installed
type ToolCheck struct {
	Tool        string
	InstallHint string
}

func (c *ToolCheck) Name() string {
	return c.Tool
}

func (c *ToolCheck) Run(ctx context.Context) CheckResult {
	path, err := exec.LookPath(c.Tool)
	if err != nil {
		msg := fmt.Sprintf("%s command not found", c.Tool)
		if c.InstallHint != "" {
			msg += ". Install it from " + c.InstallHint
		}
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: msg,
			Error:   err,
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := exec.CommandContext(checkCtx, path, "--version").CombinedOutput()
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("%s is installed but may not be working correctly", c.Tool),
			Error:   err,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("%s is available (%s)", c.Tool, strings.TrimSpace(string(output))),
	}
}

// PackageDirCheck checks that a directory exists and holds a readable package.json
type PackageDirCheck struct {
	Label string
	Path  string
}

func (c *PackageDirCheck) Name() string {
	return c.Label
}

func (c *PackageDirCheck) Run(ctx context.Context) CheckResult {
	absPath, err := filepath.Abs(c.Path)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("failed to resolve path: %s", c.Path),
			Error:   err,
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		msg := fmt.Sprintf("cannot access directory: %s", absPath)
		if os.IsNotExist(err) {
			msg = fmt.Sprintf("directory does not exist: %s", absPath)
		}
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: msg,
			Error:   err,
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("path is not a directory: %s", absPath),
			Error:   fmt.Errorf("not a directory"),
		}
	}

	m, err := manifest.Read(absPath)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("no usable %s in %s", manifest.FileName, absPath),
			Error:   err,
		}
	}
	if m.Private {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("%s is marked private; npm will refuse to publish it", m.Name),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("found %s in %s", m.Name, absPath),
	}
}

// RepoDetector reports whether a directory is inside a git work tree.
type RepoDetector interface {
	IsRepo(ctx context.Context) bool
}

// GitRepoCheck checks that the deploy directory is a git work tree. Commit
// history, manifest restore and local tagging all run there.
type GitRepoCheck struct {
	Path     string
	Repo     RepoDetector
	Required bool
}

func (c *GitRepoCheck) Name() string {
	return "git-repo"
}

func (c *GitRepoCheck) Run(ctx context.Context) CheckResult {
	if c.Repo.IsRepo(ctx) {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelInfo,
			Message: fmt.Sprintf("%s is a git work tree", c.Path),
		}
	}

	level := LevelWarn
	if c.Required {
		level = LevelError
	}
	return CheckResult{
		Name:    c.Name(),
		Level:   level,
		Message: fmt.Sprintf("%s is not inside a git work tree; check out the repository before releasing", c.Path),
	}
}

// TokenCheck checks that a credential is configured
type TokenCheck struct {
	Label string
	Env   string
	Value string
}

func (c *TokenCheck) Name() string {
	return c.Label
}

func (c *TokenCheck) Run(ctx context.Context) CheckResult {
	if strings.TrimSpace(c.Value) == "" {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("token not found. Set the %s environment variable", c.Env),
			Error:   fmt.Errorf("no %s found", c.Env),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("token available (from %s)", c.Env),
	}
}

// OutputCheck checks that the step output file can be appended to
type OutputCheck struct {
	Path string
}

func (c *OutputCheck) Name() string {
	return "output"
}

func (c *OutputCheck) Run(ctx context.Context) CheckResult {
	f, err := os.OpenFile(c.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("output file is not writable: %s", c.Path),
			Error:   err,
		}
	}
	f.Close()

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("output file is writable: %s", c.Path),
	}
}

// RegistryCheck performs a basic reachability check against the source-of-truth registry.
// A failure only degrades the release to the event commit list, so it never blocks.
type RegistryCheck struct {
	URL string
}

func (c *RegistryCheck) Name() string {
	return "registry"
}

func (c *RegistryCheck) Run(ctx context.Context) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.URL, nil)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: "failed to create registry check request",
			Error:   err,
		}
	}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("registry %s may be unreachable (prior release lookup will fall back to event commits)", c.URL),
			Error:   err,
		}
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		log.Debug("failed to drain response body", "error", err)
	}

	if resp.StatusCode >= 500 {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("registry returned unexpected status: %d", resp.StatusCode),
			Error:   fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("registry %s is reachable", c.URL),
	}
}
