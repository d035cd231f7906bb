package git

import (
	"fmt"
	"strings"
)

// DefaultTaggerName is the tagger name used when nothing else is configured.
const DefaultTaggerName = "github-actions[bot]"

// DefaultTaggerEmail is the tagger email used when nothing else is configured.
const DefaultTaggerEmail = "41898282+github-actions[bot]@users.noreply.github.com"

// Identity is the name/email pair recorded on annotated release tags.
type Identity struct {
	Name  string
	Email string
}

// IdentityOptions holds the candidate sources for the tagger identity.
type IdentityOptions struct {
	// ExplicitName and ExplicitEmail come from --tagger and win over everything.
	ExplicitName  string
	ExplicitEmail string

	// EnvName and EnvEmail come from GIT_COMMITTER_NAME / GIT_COMMITTER_EMAIL.
	EnvName  string
	EnvEmail string
}

// ResolveIdentity resolves the tagger identity with the following priority:
// 1. Explicit overrides
// 2. Environment variables
// 3. Defaults ("github-actions[bot]")
//
// Name and email are resolved independently.
func ResolveIdentity(opts IdentityOptions) Identity {
	id := Identity{
		Name:  DefaultTaggerName,
		Email: DefaultTaggerEmail,
	}

	if opts.EnvName != "" {
		id.Name = opts.EnvName
	}
	if opts.EnvEmail != "" {
		id.Email = opts.EnvEmail
	}

	if opts.ExplicitName != "" {
		id.Name = opts.ExplicitName
	}
	if opts.ExplicitEmail != "" {
		id.Email = opts.ExplicitEmail
	}

	return id
}

// String formats the identity as "Name <email>".
func (id Identity) String() string {
	return FormatAuthor(id.Name, id.Email)
}

// FormatAuthor formats a git author string in the format "Name <email>".
func FormatAuthor(name, email string) string {
	if name == "" && email == "" {
		return ""
	}
	if name == "" {
		return email
	}
	if email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// ParseAuthor parses a git author string in the format "Name <email>".
func ParseAuthor(author string) (name, email string) {
	author = strings.TrimSpace(author)

	leftAngle := strings.LastIndex(author, "<")
	rightAngle := strings.LastIndex(author, ">")

	if leftAngle != -1 && rightAngle != -1 && rightAngle > leftAngle {
		name = strings.TrimSpace(author[:leftAngle])
		email = strings.TrimSpace(author[leftAngle+1 : rightAngle])
	} else {
		name = author
	}

	return name, email
}
