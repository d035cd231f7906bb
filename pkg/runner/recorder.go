package runner

import (
	"context"
	"sync"
)

// Recorder is an in-memory Runner that records every command and answers
// from a handler. It backs the collaborator tests of git, npm and release.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	// Handler produces the output for a command; nil returns "", nil.
	Handler func(cmd Command) (string, error)
}

// Run implements Runner.
func (r *Recorder) Run(ctx context.Context, cmd Command) (string, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	handler := r.Handler
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if handler == nil {
		return "", nil
	}
	return handler(cmd)
}

// Commands returns a copy of the recorded commands in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}
