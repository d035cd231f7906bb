package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/holon-run/merge-release/pkg/config"
	"github.com/holon-run/merge-release/pkg/git"
	"github.com/holon-run/merge-release/pkg/log"
	"github.com/holon-run/merge-release/pkg/preflight"
	"github.com/holon-run/merge-release/pkg/runner"
)

var (
	dryRun        bool
	skipPreflight bool
	runTimeout    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Publish and tag the next release",
	Long: `Publish and tag the next release.

The version bump is derived from the commits since the commit recorded by the
latest published version (or from the triggering event when that history is
unavailable): any "BREAKING CHANGE" yields a major release, a message starting
with "feat" a minor release, anything else a patch release.

Re-running on a commit that is already released does nothing.

Examples:
  merge-release run
  merge-release run --use-npm --use-github --tag-mode git
  merge-release run --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if dryRun {
			return runPlan(cmd, cfg)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := withTimeout(cmd.Context(), runTimeout)
		defer cancel()

		if err := newChecker(cfg, true).Run(ctx); err != nil {
			return err
		}

		s, err := newSession(ctx, cfg, cmd.OutOrStdout(), true)
		if err != nil {
			return err
		}
		defer s.cleanup()

		res, err := s.releaser.Run(ctx)
		if err != nil {
			return err
		}

		if res.Skipped {
			s.reporter.Notice(fmt.Sprintf("%s: SHA matches latest release, skipping.", res.Package))
			return nil
		}
		log.Info("release summary", "package", res.Package, "previous", res.Previous, "version", res.Version, "bump", res.Bump, "source", res.Source, "registries", res.Registries)
		return nil
	},
}

// newChecker builds the preflight checks for cfg. Publishing runs also
// require credentials.
func newChecker(cfg *config.Config, publishing bool) *preflight.Checker {
	return preflight.NewChecker(preflight.Config{
		Skip:               skipPreflight,
		RequireGit:         true,
		RequireNPM:         true,
		DeployDir:          cfg.DeployDir,
		SrcPackageDir:      cfg.SrcPackageDir,
		GitRepo:            git.NewClient(cfg.DeployDir, runner.NewExecRunner(nil)),
		RequireGitRepo:     publishing,
		RequireNPMToken:    publishing,
		NPMAuthToken:       cfg.NPMAuthToken,
		RequireGitHubToken: publishing && cfg.TagMode == config.TagModeAPI,
		GitHubToken:        cfg.GitHubToken,
		OutputPath:         cfg.OutputPath,
		Registry:           cfg.Registries()[0],
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the release plan without changing, publishing or tagging anything")
	runCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip preflight checks")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort the run after this duration (0 means no limit)")
	rootCmd.AddCommand(runCmd)
}
