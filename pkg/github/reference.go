package github

import (
	"fmt"
	"regexp"
	"strings"
)

// repositoryPattern matches GITHUB_REPOSITORY values: owner/repo
var repositoryPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)$`)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses an "owner/repo" string.
func ParseRepository(s string) (*Repository, error) {
	s = strings.TrimSpace(s)

	matches := repositoryPattern.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("invalid GitHub repository format: %q (expected: owner/repo)", s)
	}

	return &Repository{
		Owner: matches[1],
		Name:  matches[2],
	}, nil
}

// String returns the "owner/repo" form.
func (r *Repository) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}
