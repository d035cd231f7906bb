package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/holon-run/merge-release/pkg/actions"
	"github.com/holon-run/merge-release/pkg/config"
	"github.com/holon-run/merge-release/pkg/log"
)

var (
	configPath    string
	logLevel      string
	useGitHub     bool
	useNPM        bool
	registryURL   string
	buildSHA      string
	commitish     string
	deployDir     string
	srcPackageDir string
	eventPath     string
	tagMode       string
	writeNPMRC    bool
	tagger        string
)

var rootCmd = &cobra.Command{
	Use:   "merge-release",
	Short: "Release every merge: derive the next version from commits, publish to npm registries and tag it.",
	Long: `merge-release inspects the commits since the last published version of a
package, derives a major/minor/patch bump from them, publishes the bumped
package to every configured npm registry and tags the release commit.

It is designed to run as a GitHub Action step. Configuration comes from
.merge-release.yaml, the action environment (USE_NPM, USE_GITHUB,
OTHER_REGISTRY, NPM_AUTH_TOKEN, GITHUB_SHA, DEPLOY_DIR, SRC_PACKAGE_DIR, ...)
and flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default: .merge-release.yaml if present)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, progress, warn, error (default: progress)")
	pf.BoolVar(&useGitHub, "use-github", false, "Publish to the GitHub Packages registry")
	pf.BoolVar(&useNPM, "use-npm", false, "Publish to the public npm registry")
	pf.StringVar(&registryURL, "registry", "", "Additional registry URL; takes precedence as the source of truth")
	pf.StringVar(&buildSHA, "sha", "", "Build commit (default: $GITHUB_SHA, then HEAD of the deploy dir)")
	pf.StringVar(&commitish, "commitish", "", "Commit, branch or tag to put the release tag on (default: build commit)")
	pf.StringVar(&deployDir, "deploy-dir", "", "Directory whose package is published (default: .)")
	pf.StringVar(&srcPackageDir, "src-package-dir", "", "Directory whose package.json drives the version (default: .)")
	pf.StringVar(&eventPath, "event-path", "", "Path to the event payload (default: "+config.DefaultEventPath+")")
	pf.StringVar(&tagMode, "tag-mode", "", "How to create the release tag: api or git (default: api)")
	pf.BoolVar(&writeNPMRC, "write-npmrc", true, "Write a temporary npm user config with registry credentials")
	pf.StringVar(&tagger, "tagger", "", `Tagger identity "Name <email>" (default: $GIT_COMMITTER_NAME/$GIT_COMMITTER_EMAIL or github-actions[bot])`)
}

// loadConfig resolves the configuration and initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var o config.Overrides
	if flags.Changed("use-github") {
		o.UseGitHub = &useGitHub
	}
	if flags.Changed("use-npm") {
		o.UseNPM = &useNPM
	}
	if flags.Changed("registry") {
		o.Registry = &registryURL
	}
	if flags.Changed("sha") {
		o.SHA = &buildSHA
	}
	if flags.Changed("commitish") {
		o.Commitish = &commitish
	}
	if flags.Changed("deploy-dir") {
		o.DeployDir = &deployDir
	}
	if flags.Changed("src-package-dir") {
		o.SrcPackageDir = &srcPackageDir
	}
	if flags.Changed("event-path") {
		o.EventPath = &eventPath
	}
	if flags.Changed("tag-mode") {
		o.TagMode = &tagMode
	}
	if flags.Changed("write-npmrc") {
		o.WriteNPMRC = &writeNPMRC
	}
	if flags.Changed("log-level") {
		o.LogLevel = &logLevel
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: configPath,
		Overrides:  o,
	})
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if err := log.Init(log.Config{Level: level, Output: cmd.ErrOrStderr()}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	defaultBuildSHA(cmd.Context(), cfg)
	return cfg, nil
}

// execute runs the root command and reports a failure the way the Actions
// runner expects: an ::error:: line on stdout and exit status 1.
func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { _ = log.Sync() }()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("release failed", "error", err)
		actions.NewReporter(os.Stdout, "").Error(err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute())
}
