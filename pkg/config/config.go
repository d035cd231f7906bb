// Package config builds the release configuration value object from the
// YAML file, the environment and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// GitHubRegistry is the GitHub Packages npm registry.
	GitHubRegistry = "https://npm.pkg.github.com"
	// NPMRegistry is the public npm registry.
	NPMRegistry = "https://registry.npmjs.org/"

	// DefaultEventPath is where the Actions runner mounts the event payload
	// inside container actions.
	DefaultEventPath = "/github/workflow/event.json"
	// DefaultConfigFile is read from the working directory when present.
	DefaultConfigFile = ".merge-release.yaml"
	// DefaultGitHubAPIURL is the public GitHub REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com/"
	// DefaultRegistryTimeout bounds a single registry metadata request.
	DefaultRegistryTimeout = 30 * time.Second
)

var (
	// ErrMissingToken is returned when NPM_AUTH_TOKEN is not set.
	ErrMissingToken = errors.New("missing NPM_AUTH_TOKEN")
	// ErrInvalidConfig is wrapped by every other validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TagMode selects how the release tag is created.
type TagMode string

const (
	// TagModeAPI creates an annotated tag through the GitHub Git Data API.
	TagModeAPI TagMode = "api"
	// TagModeGit runs git tag in the deploy directory.
	TagModeGit TagMode = "git"
)

// Config is the complete release configuration. It is built once by Load and
// passed to the release procedure, which never reads the environment itself.
type Config struct {
	UseGitHub     bool
	UseNPM        bool
	OtherRegistry string

	NPMAuthToken string
	BuildSHA     string
	Commitish    string

	DeployDir     string
	SrcPackageDir string
	EventPath     string

	TagMode      TagMode
	GitHubToken  string
	Repository   string
	GitHubAPIURL string

	OutputPath      string
	WriteNPMRC      bool
	LogLevel        string
	RegistryTimeout time.Duration
}

// File is the on-disk YAML representation. Unset keys keep their defaults.
type File struct {
	UseGitHub       *bool  `yaml:"use_github,omitempty"`
	UseNPM          *bool  `yaml:"use_npm,omitempty"`
	OtherRegistry   string `yaml:"other_registry,omitempty"`
	Commitish       string `yaml:"commitish,omitempty"`
	DeployDir       string `yaml:"deploy_dir,omitempty"`
	SrcPackageDir   string `yaml:"src_package_dir,omitempty"`
	EventPath       string `yaml:"event_path,omitempty"`
	TagMode         string `yaml:"tag_mode,omitempty"`
	Repository      string `yaml:"repository,omitempty"`
	GitHubAPIURL    string `yaml:"github_api_url,omitempty"`
	WriteNPMRC      *bool  `yaml:"write_npmrc,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
	RegistryTimeout string `yaml:"registry_timeout,omitempty"`
}

// Overrides carries values set explicitly on the command line. Nil fields
// were not given.
type Overrides struct {
	UseGitHub     *bool
	UseNPM        *bool
	Registry      *string
	SHA           *string
	Commitish     *string
	DeployDir     *string
	SrcPackageDir *string
	EventPath     *string
	TagMode       *string
	WriteNPMRC    *bool
	LogLevel      *string
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigPath is the YAML file to read. When empty, DefaultConfigFile in
	// WorkDir is used if it exists.
	ConfigPath string
	// WorkDir resolves relative directories. Defaults to the process working directory.
	WorkDir string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv LookupFunc
	Overrides Overrides
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		DeployDir:       ".",
		SrcPackageDir:   ".",
		EventPath:       DefaultEventPath,
		TagMode:         TagModeAPI,
		GitHubAPIURL:    DefaultGitHubAPIURL,
		WriteNPMRC:      true,
		RegistryTimeout: DefaultRegistryTimeout,
	}
}

// Load resolves the configuration: defaults, then the YAML file, then the
// environment, then explicit overrides.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}

	cfg := Default()

	file, err := readFile(opts.ConfigPath, workDir)
	if err != nil {
		return nil, err
	}
	if file != nil {
		if err := cfg.applyFile(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyOverrides(opts.Overrides)

	cfg.DeployDir = resolveDir(workDir, cfg.DeployDir)
	cfg.SrcPackageDir = resolveDir(workDir, cfg.SrcPackageDir)

	return &cfg, nil
}

func readFile(path, workDir string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(workDir, DefaultConfigFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
	}
	return &f, nil
}

func (c *Config) applyFile(f *File) error {
	if f.UseGitHub != nil {
		c.UseGitHub = *f.UseGitHub
	}
	if f.UseNPM != nil {
		c.UseNPM = *f.UseNPM
	}
	if f.WriteNPMRC != nil {
		c.WriteNPMRC = *f.WriteNPMRC
	}
	setString(&c.OtherRegistry, f.OtherRegistry)
	setString(&c.Commitish, f.Commitish)
	setString(&c.DeployDir, f.DeployDir)
	setString(&c.SrcPackageDir, f.SrcPackageDir)
	setString(&c.EventPath, f.EventPath)
	setString(&c.Repository, f.Repository)
	setString(&c.GitHubAPIURL, f.GitHubAPIURL)
	setString(&c.LogLevel, f.LogLevel)
	if f.TagMode != "" {
		c.TagMode = TagMode(strings.ToLower(strings.TrimSpace(f.TagMode)))
	}
	if f.RegistryTimeout != "" {
		d, err := time.ParseDuration(f.RegistryTimeout)
		if err != nil {
			return fmt.Errorf("%w: registry_timeout: %v", ErrInvalidConfig, err)
		}
		c.RegistryTimeout = d
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	env := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	boolEnv := func(dst *bool, keys ...string) error {
		v := env(keys...)
		if v == "" {
			return nil
		}
		b, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, keys[len(keys)-1], err)
		}
		*dst = b
		return nil
	}

	if err := boolEnv(&c.UseGitHub, "INPUT_USE_GITHUB", "USE_GITHUB"); err != nil {
		return err
	}
	if err := boolEnv(&c.UseNPM, "INPUT_USE_NPM", "USE_NPM"); err != nil {
		return err
	}
	if err := boolEnv(&c.WriteNPMRC, "MERGE_RELEASE_WRITE_NPMRC"); err != nil {
		return err
	}

	setString(&c.OtherRegistry, env("INPUT_OTHER_REGISTRY", "OTHER_REGISTRY"))
	setString(&c.NPMAuthToken, env("NPM_AUTH_TOKEN"))
	setString(&c.BuildSHA, env("GITHUB_SHA"))
	setString(&c.Commitish, env("INPUT_COMMITISH"))
	setString(&c.DeployDir, env("DEPLOY_DIR"))
	setString(&c.SrcPackageDir, env("SRC_PACKAGE_DIR"))
	setString(&c.EventPath, env("GITHUB_EVENT_PATH"))
	setString(&c.GitHubToken, env("GITHUB_TOKEN"))
	setString(&c.Repository, env("GITHUB_REPOSITORY"))
	setString(&c.GitHubAPIURL, env("GITHUB_API_URL"))
	setString(&c.OutputPath, env("GITHUB_OUTPUT"))
	setString(&c.LogLevel, env("MERGE_RELEASE_LOG_LEVEL"))
	if v := env("MERGE_RELEASE_TAG_MODE"); v != "" {
		c.TagMode = TagMode(strings.ToLower(v))
	}
	if v := env("MERGE_RELEASE_REGISTRY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: MERGE_RELEASE_REGISTRY_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.RegistryTimeout = d
	}
	return nil
}

func (c *Config) applyOverrides(o Overrides) {
	if o.UseGitHub != nil {
		c.UseGitHub = *o.UseGitHub
	}
	if o.UseNPM != nil {
		c.UseNPM = *o.UseNPM
	}
	if o.WriteNPMRC != nil {
		c.WriteNPMRC = *o.WriteNPMRC
	}
	if o.Registry != nil {
		c.OtherRegistry = strings.TrimSpace(*o.Registry)
	}
	if o.SHA != nil {
		c.BuildSHA = strings.TrimSpace(*o.SHA)
	}
	if o.Commitish != nil {
		c.Commitish = strings.TrimSpace(*o.Commitish)
	}
	if o.DeployDir != nil {
		c.DeployDir = *o.DeployDir
	}
	if o.SrcPackageDir != nil {
		c.SrcPackageDir = *o.SrcPackageDir
	}
	if o.EventPath != nil {
		c.EventPath = *o.EventPath
	}
	if o.TagMode != nil {
		c.TagMode = TagMode(strings.ToLower(strings.TrimSpace(*o.TagMode)))
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func resolveDir(workDir, dir string) string {
	if dir == "" {
		dir = "."
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(workDir, dir)
}

// ParseBool accepts the strconv.ParseBool spellings, case-insensitively.
func ParseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
}

// Registries returns the ordered registry list. Each enabled source is
// prepended, so the last enabled one (the explicit URL) comes first. An
// explicit URL naming a flag-enabled registry replaces that entry. The
// first entry is the source of truth for release lookups.
func (c *Config) Registries() []string {
	var registries []string
	if c.UseGitHub {
		registries = append([]string{GitHubRegistry}, registries...)
	}
	if c.UseNPM {
		registries = append([]string{NPMRegistry}, registries...)
	}
	if c.OtherRegistry != "" {
		registries = append([]string{c.OtherRegistry}, withoutRegistry(registries, c.OtherRegistry)...)
	}
	if len(registries) == 0 {
		registries = []string{NPMRegistry}
	}
	return registries
}

// withoutRegistry drops entries equal to url, ignoring trailing slashes.
func withoutRegistry(registries []string, url string) []string {
	want := strings.TrimRight(url, "/")
	out := registries[:0]
	for _, r := range registries {
		if strings.TrimRight(r, "/") != want {
			out = append(out, r)
		}
	}
	return out
}

// TagCommitish is the commit the release tag points at.
func (c *Config) TagCommitish() string {
	if c.Commitish != "" {
		return c.Commitish
	}
	return c.BuildSHA
}

// Validate checks everything a publishing run needs. It must pass before any
// side effect.
func (c *Config) Validate() error {
	if c.NPMAuthToken == "" {
		return ErrMissingToken
	}
	if err := c.ValidateForPlan(); err != nil {
		return err
	}

	switch c.TagMode {
	case TagModeAPI:
		if c.GitHubToken == "" {
			return fmt.Errorf("%w: GITHUB_TOKEN is required with tag mode %q", ErrInvalidConfig, c.TagMode)
		}
		if c.Repository == "" {
			return fmt.Errorf("%w: GITHUB_REPOSITORY is required with tag mode %q", ErrInvalidConfig, c.TagMode)
		}
	case TagModeGit:
	default:
		return fmt.Errorf("%w: unknown tag mode %q (want %q or %q)", ErrInvalidConfig, c.TagMode, TagModeAPI, TagModeGit)
	}
	return nil
}

// ValidateForPlan checks what a side-effect-free plan needs.
func (c *Config) ValidateForPlan() error {
	if c.BuildSHA == "" {
		return fmt.Errorf("%w: GITHUB_SHA is required", ErrInvalidConfig)
	}
	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("%w: registry timeout must be positive", ErrInvalidConfig)
	}
	for _, r := range c.Registries() {
		if !strings.HasPrefix(r, "http://") && !strings.HasPrefix(r, "https://") {
			return fmt.Errorf("%w: registry %q must be an http(s) URL", ErrInvalidConfig, r)
		}
	}
	return nil
}

// Secrets lists configured credentials for log redaction.
func (c *Config) Secrets() []string {
	var secrets []string
	for _, s := range []string{c.NPMAuthToken, c.GitHubToken} {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}
