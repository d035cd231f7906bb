package github

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/holon-run/merge-release/pkg/git"
	"github.com/holon-run/merge-release/pkg/log"
)

var fullSHAPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Tagger creates annotated release tags with the Git Data API.
type Tagger struct {
	client   *github.Client
	repo     *Repository
	identity git.Identity
	now      func() time.Time
}

// TaggerOption configures a Tagger.
type TaggerOption func(*Tagger)

// WithTaggerIdentity sets the tagger recorded on the tag object.
func WithTaggerIdentity(id git.Identity) TaggerOption {
	return func(t *Tagger) {
		t.identity = id
	}
}

// NewTagger creates a tagger for repo using client.
func NewTagger(client *github.Client, repo *Repository, opts ...TaggerOption) *Tagger {
	t := &Tagger{
		client: client,
		repo:   repo,
		identity: git.Identity{
			Name:  git.DefaultTaggerName,
			Email: git.DefaultTaggerEmail,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tag creates an annotated tag object for commitish and the
// refs/tags/<name> reference pointing at it.
func (t *Tagger) Tag(ctx context.Context, name, commitish, message string) error {
	sha, err := t.resolveCommit(ctx, commitish)
	if err != nil {
		return err
	}

	tag, _, err := t.client.Git.CreateTag(ctx, t.repo.Owner, t.repo.Name, &github.Tag{
		Tag:     github.Ptr(name),
		Message: github.Ptr(message),
		Object: &github.GitObject{
			Type: github.Ptr("commit"),
			SHA:  github.Ptr(sha),
		},
		Tagger: &github.CommitAuthor{
			Name:  github.Ptr(t.identity.Name),
			Email: github.Ptr(t.identity.Email),
			Date:  &github.Timestamp{Time: t.now().UTC()},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create tag object %s: %w", name, t.explain(err))
	}

	_, _, err = t.client.Git.CreateRef(ctx, t.repo.Owner, t.repo.Name, &github.Reference{
		Ref: github.Ptr("refs/tags/" + name),
		Object: &github.GitObject{
			SHA: github.Ptr(tag.GetSHA()),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create tag ref %s: %w", name, t.explain(err))
	}

	log.Info("created release tag", "tag", name, "commit", sha, "repo", t.repo.String())
	return nil
}

// resolveCommit turns a branch, tag or short SHA into a full commit SHA.
func (t *Tagger) resolveCommit(ctx context.Context, commitish string) (string, error) {
	if commitish == "" {
		return "", fmt.Errorf("commitish is empty")
	}
	if fullSHAPattern.MatchString(commitish) {
		return commitish, nil
	}

	sha, _, err := t.client.Repositories.GetCommitSHA1(ctx, t.repo.Owner, t.repo.Name, commitish, "")
	if err != nil {
		err = t.explain(err)
		if IsNotFoundError(err) {
			return "", fmt.Errorf("commitish %q not found in %s: %w", commitish, t.repo, err)
		}
		return "", fmt.Errorf("failed to resolve %s: %w", commitish, err)
	}
	return sha, nil
}

// explain converts err to an *APIError and appends what the caller can do
// about rejected tokens and exhausted rate limits.
func (t *Tagger) explain(err error) error {
	err = wrapError(err)
	switch {
	case IsRateLimitError(err):
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RateLimit != nil && apiErr.RateLimit.Reset > 0 {
			reset := time.Unix(apiErr.RateLimit.Reset, 0).UTC().Format(time.RFC3339)
			return fmt.Errorf("%w (rate limit resets at %s)", err, reset)
		}
	case IsAuthenticationError(err):
		return fmt.Errorf("%w (GITHUB_TOKEN needs contents: write on %s)", err, t.repo)
	}
	return err
}
