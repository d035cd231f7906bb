package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/holon-run/merge-release/pkg/actions"
	"github.com/holon-run/merge-release/pkg/config"
	"github.com/holon-run/merge-release/pkg/event"
	"github.com/holon-run/merge-release/pkg/git"
	"github.com/holon-run/merge-release/pkg/github"
	"github.com/holon-run/merge-release/pkg/log"
	"github.com/holon-run/merge-release/pkg/logs/redact"
	"github.com/holon-run/merge-release/pkg/npm"
	"github.com/holon-run/merge-release/pkg/registry"
	"github.com/holon-run/merge-release/pkg/release"
	"github.com/holon-run/merge-release/pkg/runner"
)

// session holds the collaborators built for one invocation.
type session struct {
	releaser *release.Releaser
	reporter *actions.Reporter
	cleanup  func()
}

// newSession wires the release collaborators from cfg. When withTagger is
// false no tagging backend is constructed (plan mode).
func newSession(ctx context.Context, cfg *config.Config, stdout io.Writer, withTagger bool) (*session, error) {
	s := &session{cleanup: func() {}}

	redactor := redact.New(redact.Config{Secrets: cfg.Secrets()})
	execRunner := runner.NewExecRunner(redactor)

	var npmEnv map[string]string
	if cfg.WriteNPMRC && cfg.NPMAuthToken != "" {
		path, cleanup, err := npm.WriteUserConfig(cfg.Registries(), cfg.NPMAuthToken)
		if err != nil {
			return nil, err
		}
		s.cleanup = cleanup
		npmEnv = map[string]string{npm.UserConfigEnv: path}
		log.Debug("wrote npm user config", "path", path)
	}

	registries := cfg.Registries()
	lookup := registry.NewClient(registries[0],
		registry.WithToken(cfg.NPMAuthToken),
		registry.WithTimeout(cfg.RegistryTimeout),
	)

	identity := resolveIdentity()
	gitClient := git.NewClient(cfg.DeployDir, execRunner, git.WithIdentity(identity))

	var tagBackend release.Tagger
	if withTagger {
		t, err := newTagger(ctx, cfg, gitClient, identity)
		if err != nil {
			s.cleanup()
			return nil, err
		}
		tagBackend = t
	}

	s.reporter = actions.NewReporter(stdout, cfg.OutputPath)
	s.releaser = release.New(cfg, release.Deps{
		Lookup:   lookup,
		History:  gitClient,
		Events:   event.NewFile(cfg.EventPath),
		Packages: npm.NewClient(execRunner, npm.WithEnv(npmEnv)),
		Restorer: gitClient,
		Tagger:   tagBackend,
		Output:   s.reporter,
	})

	return s, nil
}

func newTagger(ctx context.Context, cfg *config.Config, gitClient *git.Client, identity git.Identity) (release.Tagger, error) {
	switch cfg.TagMode {
	case config.TagModeGit:
		return gitClient, nil
	case config.TagModeAPI:
		repo, err := github.ParseRepository(cfg.Repository)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		client, err := github.NewClient(ctx, cfg.GitHubToken, cfg.GitHubAPIURL)
		if err != nil {
			return nil, err
		}
		return github.NewTagger(client, repo, github.WithTaggerIdentity(identity)), nil
	default:
		return nil, fmt.Errorf("%w: unknown tag mode %q", config.ErrInvalidConfig, cfg.TagMode)
	}
}

// defaultBuildSHA fills in the build commit from HEAD of the deploy dir when
// GITHUB_SHA and --sha are both unset.
func defaultBuildSHA(ctx context.Context, cfg *config.Config) {
	if cfg.BuildSHA != "" {
		return
	}
	sha, err := git.NewClient(cfg.DeployDir, runner.NewExecRunner(nil)).HeadSHA(ctx)
	if err != nil || sha == "" {
		log.Debug("no build commit from HEAD", "dir", cfg.DeployDir, "error", err)
		return
	}
	cfg.BuildSHA = sha
	log.Progress("GITHUB_SHA not set, using HEAD as build commit", "sha", sha)
}

func resolveIdentity() git.Identity {
	opts := git.IdentityOptions{
		EnvName:  os.Getenv("GIT_COMMITTER_NAME"),
		EnvEmail: os.Getenv("GIT_COMMITTER_EMAIL"),
	}
	if tagger != "" {
		opts.ExplicitName, opts.ExplicitEmail = git.ParseAuthor(tagger)
	}
	return git.ResolveIdentity(opts)
}
