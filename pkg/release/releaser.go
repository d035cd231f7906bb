// Package release decides the next package version from commit history and
// drives the publish, restore and tag sequence.
package release

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/holon-run/merge-release/pkg/config"
	"github.com/holon-run/merge-release/pkg/event"
	"github.com/holon-run/merge-release/pkg/git"
	"github.com/holon-run/merge-release/pkg/log"
	"github.com/holon-run/merge-release/pkg/manifest"
	"github.com/holon-run/merge-release/pkg/registry"
)

// OutputVersion is the step output carrying the released version.
const OutputVersion = "version"

// Lookup fetches the latest published metadata from the source-of-truth registry.
type Lookup interface {
	Latest(ctx context.Context, name string) (*registry.PackageInfo, error)
}

// History lists commits in from..to.
type History interface {
	Log(ctx context.Context, from, to string) ([]git.Commit, error)
}

// EventSource supplies the commits of the triggering event.
type EventSource interface {
	Commits() ([]event.Commit, error)
}

// PackageManager queries, versions and publishes the package.
type PackageManager interface {
	PublishedVersion(ctx context.Context, dir, name, registry string) (string, error)
	SetVersion(ctx context.Context, dir, version string) error
	Bump(ctx context.Context, dir, bump string) (string, error)
	Publish(ctx context.Context, dir, registry string) error
}

// Restorer discards working-tree changes to a single file.
type Restorer interface {
	RestoreFile(ctx context.Context, dir, file string) error
}

// Tagger creates the release tag.
type Tagger interface {
	Tag(ctx context.Context, name, commitish, message string) error
}

// OutputWriter records step outputs.
type OutputWriter interface {
	SetOutput(name, value string) error
}

// Deps are the collaborators of a Releaser.
type Deps struct {
	Lookup   Lookup
	History  History
	Events   EventSource
	Packages PackageManager
	Restorer Restorer
	Tagger   Tagger
	Output   OutputWriter
}

// MessageSource tells where classified commit messages came from.
type MessageSource string

const (
	SourceHistory MessageSource = "history"
	SourceEvent   MessageSource = "event"
)

// Result describes a completed run.
type Result struct {
	Package string
	// Skipped is set when the build commit is already released.
	Skipped    bool
	Prior      *registry.PackageInfo
	Source     MessageSource
	Bump       Bump
	Previous   string
	Version    string
	Tag        string
	Registries []string
}

// PublishError reports a fan-out stopped partway. Registries in Published
// already serve Version; nothing is rolled back.
type PublishError struct {
	Version   string
	Published []string
	Failed    string
	Err       error
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("failed to publish %s to %s", e.Version, e.Failed)
	if len(e.Published) > 0 {
		msg += fmt.Sprintf(" (already published to %s)", strings.Join(e.Published, ", "))
	}
	return msg + ": " + e.Err.Error()
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Releaser runs the release procedure for one package.
type Releaser struct {
	cfg  *config.Config
	deps Deps
}

// New creates a Releaser. cfg must have passed Validate.
func New(cfg *config.Config, deps Deps) *Releaser {
	return &Releaser{cfg: cfg, deps: deps}
}

// decision is the outcome of the read-only phase.
type decision struct {
	name     string
	prior    *registry.PackageInfo
	skipped  bool
	source   MessageSource
	messages []string
	bump     Bump
}

// decide loads the manifest, resolves the prior release, collects commit
// messages and classifies them. It has no side effects.
func (r *Releaser) decide(ctx context.Context) (*decision, error) {
	m, err := manifest.Read(r.cfg.DeployDir)
	if err != nil {
		return nil, err
	}
	d := &decision{name: m.Name}

	d.prior = r.priorRelease(ctx, m.Name)
	if d.prior != nil && d.prior.GitHead == r.cfg.BuildSHA {
		d.skipped = true
		return d, nil
	}

	var commits []git.Commit
	if d.prior != nil {
		commits, err = r.history(ctx, d.prior.GitHead)
		if err != nil {
			log.Warn("commit history unavailable, treating package as unpublished", "from", d.prior.GitHead, "error", err)
			d.prior = nil
		}
	}

	if d.prior != nil {
		d.source = SourceHistory
		for _, c := range commits {
			d.messages = append(d.messages, c.Message+"\n"+c.Body)
		}
	} else {
		evCommits, err := r.deps.Events.Commits()
		if err != nil {
			return nil, fmt.Errorf("failed to load event commits: %w", err)
		}
		d.source = SourceEvent
		for _, c := range evCommits {
			d.messages = append(d.messages, c.Text())
		}
	}

	d.bump = Classify(d.messages)
	log.Info("classified changes", "package", d.name, "source", d.source, "messages", len(d.messages), "bump", d.bump)
	return d, nil
}

// priorRelease returns the latest release on the source-of-truth registry,
// or nil when there is none or it cannot be determined.
func (r *Releaser) priorRelease(ctx context.Context, name string) *registry.PackageInfo {
	info, err := r.deps.Lookup.Latest(ctx, name)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			log.Info("no prior release found", "package", name)
		} else {
			log.Warn("prior release lookup failed, treating package as unpublished", "package", name, "error", err)
		}
		return nil
	}
	log.Info("found prior release", "package", name, "version", info.Version, "gitHead", info.GitHead)
	return info
}

// history returns commits since gitHead. A release without a recorded
// commit has no usable history.
func (r *Releaser) history(ctx context.Context, gitHead string) ([]git.Commit, error) {
	if gitHead == "" {
		return nil, fmt.Errorf("%w: prior release has no gitHead", git.ErrHistoryUnavailable)
	}
	return r.deps.History.Log(ctx, gitHead, r.cfg.BuildSHA)
}

// Run executes the full release.
func (r *Releaser) Run(ctx context.Context) (*Result, error) {
	d, err := r.decide(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Package: d.name,
		Skipped: d.skipped,
		Prior:   d.prior,
		Source:  d.source,
		Bump:    d.bump,
	}
	if d.skipped {
		log.Progress("build commit matches latest release, skipping", "package", d.name, "sha", r.cfg.BuildSHA)
		return res, nil
	}

	pm := r.deps.Packages
	srcDir, deployDir := r.cfg.SrcPackageDir, r.cfg.DeployDir

	current, err := pm.PublishedVersion(ctx, srcDir, d.name, r.cfg.Registries()[0])
	if err != nil {
		return nil, err
	}
	res.Previous = current

	if err := pm.SetVersion(ctx, srcDir, current); err != nil {
		return nil, err
	}
	log.Progress("bumping version", "current", current, "bump", d.bump)

	next, err := pm.Bump(ctx, srcDir, string(d.bump))
	if err != nil {
		return nil, err
	}
	res.Version = next

	if err := pm.SetVersion(ctx, deployDir, next); err != nil {
		return nil, err
	}
	log.Progress("new version", "version", next)

	for _, reg := range r.cfg.Registries() {
		if err := pm.Publish(ctx, deployDir, reg); err != nil {
			return nil, &PublishError{
				Version:   next,
				Published: res.Registries,
				Failed:    reg,
				Err:       err,
			}
		}
		res.Registries = append(res.Registries, reg)
	}

	if err := r.deps.Restorer.RestoreFile(ctx, deployDir, manifest.FileName); err != nil {
		return nil, err
	}

	res.Tag = TagName(next)
	if err := r.deps.Tagger.Tag(ctx, res.Tag, r.cfg.TagCommitish(), TagMessage(next)); err != nil {
		return nil, fmt.Errorf("failed to tag release: %w", err)
	}

	if err := r.deps.Output.SetOutput(OutputVersion, next); err != nil {
		return nil, fmt.Errorf("failed to set output: %w", err)
	}

	log.Progress("released", "package", d.name, "version", next, "tag", res.Tag, "registries", len(res.Registries))
	return res, nil
}

// TagName returns the release tag for version.
func TagName(version string) string {
	return "v" + version
}

// TagMessage returns the annotated tag message for version.
func TagMessage(version string) string {
	return "automatic release of " + TagName(version)
}
