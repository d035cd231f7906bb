// Package redact scrubs secrets out of captured command output before it is
// embedded in errors or written to CI logs.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode represents the redaction mode.
type Mode string

const (
	// ModeOff disables redaction.
	ModeOff Mode = "off"
	// ModeBasic redacts known secret values and common secret-bearing patterns.
	ModeBasic Mode = "basic"
)

const defaultReplacement = "***REDACTED***"

var (
	envKeyValuePattern = regexp.MustCompile(`(\w*(?:_TOKEN|_KEY|_SECRET|_PASSWORD|_AUTH))\s*=\s*['"]?([^'"\s]+)['"]?`)
	npmrcTokenPattern  = regexp.MustCompile(`(_authToken|_auth|_password)\s*=\s*\S+`)
	headerPattern      = regexp.MustCompile(`(?i)(^|\n)\s*(Authorization|Proxy-Authorization|X-Auth-Token)\s*:\s*[^\n\r]+`)
	urlParamPattern    = regexp.MustCompile(`([?&])(token|access_token|auth_token|key|secret|password)=[^&\s#'"]+`)
	githubTokenPattern = regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{32,36}`)
	npmTokenPattern    = regexp.MustCompile(`npm_[A-Za-z0-9]{36}`)
)

// Redactor handles log redaction.
type Redactor struct {
	mode        Mode
	secrets     []string
	replacement string
}

// Config holds configuration for a Redactor.
type Config struct {
	Mode Mode
	// Secrets are literal values (auth tokens) replaced wherever they appear.
	Secrets []string
	// Replacement defaults to "***REDACTED***".
	Replacement string
}

// New creates a new Redactor with the given configuration.
func New(cfg Config) *Redactor {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeBasic
	}

	replacement := cfg.Replacement
	if replacement == "" {
		replacement = defaultReplacement
	}

	secrets := make([]string, 0, len(cfg.Secrets))
	for _, s := range cfg.Secrets {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}

	return &Redactor{
		mode:        mode,
		secrets:     secrets,
		replacement: replacement,
	}
}

// String redacts sensitive content from s.
func (r *Redactor) String(s string) string {
	if r == nil || r.mode == ModeOff {
		return s
	}

	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, r.replacement)
	}

	s = npmrcTokenPattern.ReplaceAllString(s, fmt.Sprintf("$1=%s", r.replacement))
	s = envKeyValuePattern.ReplaceAllString(s, fmt.Sprintf("$1=%s", r.replacement))
	s = headerPattern.ReplaceAllString(s, fmt.Sprintf("$1$2: %s", r.replacement))
	s = urlParamPattern.ReplaceAllString(s, fmt.Sprintf("$1$2=%s", r.replacement))
	s = githubTokenPattern.ReplaceAllString(s, r.replacement)
	s = npmTokenPattern.ReplaceAllString(s, r.replacement)

	return s
}

// Redact redacts sensitive content from the input data.
func (r *Redactor) Redact(data []byte) []byte {
	return []byte(r.String(string(data)))
}
