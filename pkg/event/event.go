// Package event reads the GitHub Actions event payload that triggered a run.
package event

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Commit is a commit listed in a push event.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	// Body is not part of GitHub's push payload but some producers add it.
	Body string `json:"body,omitempty"`
}

// Text returns the message and body joined the way commit classification
// expects. It matches the history form (subject, newline, body), so a push
// payload commit without a body ends in a newline.
func (c Commit) Text() string {
	return c.Message + "\n" + c.Body
}

// Event is the subset of the event payload used for releases.
type Event struct {
	Commits []Commit `json:"commits"`
}

// Parse decodes an event payload. A payload without commits yields an empty list.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if ev.Commits == nil {
		ev.Commits = []Commit{}
	}
	return &ev, nil
}

// Load reads and parses the event file at path.
func Load(path string) (*Event, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("event path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	ev, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

// File loads the event lazily, on the first call to Commits, and caches the result.
type File struct {
	path string

	once    sync.Once
	commits []Commit
	err     error
}

// NewFile returns a lazy event source for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Commits returns the commits of the event.
func (f *File) Commits() ([]Commit, error) {
	f.once.Do(func() {
		ev, err := Load(f.path)
		if err != nil {
			f.err = err
			return
		}
		f.commits = ev.Commits
	})
	return f.commits, f.err
}
