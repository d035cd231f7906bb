// Package actions implements the GitHub Actions workflow-command conventions
// for step outputs and failure reporting.
package actions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Reporter writes step outputs and annotations.
type Reporter struct {
	mu         sync.Mutex
	stdout     io.Writer
	outputPath string
}

// NewReporter creates a reporter. When outputPath is non-empty outputs are
// appended to that file (GITHUB_OUTPUT); otherwise the legacy set-output
// command is written to stdout.
func NewReporter(stdout io.Writer, outputPath string) *Reporter {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Reporter{stdout: stdout, outputPath: outputPath}
}

// SetOutput records a step output.
func (r *Reporter) SetOutput(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outputPath == "" {
		_, err := fmt.Fprintf(r.stdout, "::set-output name=%s::%s\n", name, escapeData(value))
		return err
	}

	f, err := os.OpenFile(r.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatOutput(name, value)); err != nil {
		return fmt.Errorf("failed to write output %s: %w", name, err)
	}
	return nil
}

// Error writes an error annotation.
func (r *Reporter) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.stdout, "::error::%s\n", escapeData(msg))
}

// Notice writes a notice annotation.
func (r *Reporter) Notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.stdout, "::notice::%s\n", escapeData(msg))
}

// formatOutput renders name=value, switching to the heredoc form for
// multi-line values.
func formatOutput(name, value string) string {
	if !strings.ContainsAny(value, "\r\n") {
		return fmt.Sprintf("%s=%s\n", name, value)
	}
	delim := "ghadelimiter_" + randomHex()
	for strings.Contains(value, delim) {
		delim = "ghadelimiter_" + randomHex()
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delim, value, delim)
}

func randomHex() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// escapeData escapes workflow-command data.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}
