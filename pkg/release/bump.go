package release

import (
	"strings"
	"unicode"
)

// Bump is a semantic-version increment kind. Its value is passed to npm version.
type Bump string

const (
	BumpPatch Bump = "patch"
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

// breakingMarker anywhere in a message forces a major release.
const breakingMarker = "BREAKING CHANGE"

// Classify derives the bump for a set of commit messages. Any message
// containing "BREAKING CHANGE" yields major; otherwise any message whose
// first word is "feat" (any case) yields minor; otherwise patch.
func Classify(messages []string) Bump {
	bump := BumpPatch
	for _, msg := range messages {
		if strings.Contains(msg, breakingMarker) {
			return BumpMajor
		}
		if strings.EqualFold(firstWord(msg), "feat") {
			bump = BumpMinor
		}
	}
	return bump
}

// firstWord returns the leading run of letters, so "feat:", "feat(ui):" and
// "feat!:" all yield "feat".
func firstWord(msg string) string {
	msg = strings.TrimLeftFunc(msg, unicode.IsSpace)
	end := strings.IndexFunc(msg, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return msg
	}
	return msg[:end]
}
