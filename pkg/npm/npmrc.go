package npm

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// UserConfigEnv is the environment variable npm reads its user config path from.
const UserConfigEnv = "NPM_CONFIG_USERCONFIG"

// AuthLine returns the npmrc line granting token access to registry, e.g.
// "//registry.npmjs.org/:_authToken=TOKEN".
func AuthLine(registry, token string) (string, error) {
	u, err := url.Parse(registry)
	if err != nil {
		return "", fmt.Errorf("invalid registry URL %q: %w", registry, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid registry URL %q: missing host", registry)
	}

	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return fmt.Sprintf("//%s%s:_authToken=%s", u.Host, path, token), nil
}

// WriteUserConfig writes a temporary npm user config authenticating every
// registry with token. The caller removes the returned directory.
func WriteUserConfig(registries []string, token string) (path string, cleanup func(), err error) {
	var b strings.Builder
	for _, registry := range registries {
		line, err := AuthLine(registry, token)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("always-auth=true\n")

	dir, err := os.MkdirTemp("", "merge-release-npmrc-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create npmrc directory: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	path = filepath.Join(dir, ".npmrc")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write npmrc: %w", err)
	}

	return path, cleanup, nil
}
