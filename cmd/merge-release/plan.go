package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holon-run/merge-release/pkg/config"
	"github.com/holon-run/merge-release/pkg/release"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the next release without publishing",
	Long: `Show what "run" would do: the prior release, where commit messages come
from, the bump kind and the projected next version. Only read-only npm and git
commands are executed.

Examples:
  merge-release plan
  merge-release plan --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runPlan(cmd, cfg)
	},
}

func runPlan(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.ValidateForPlan(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd.Context(), runTimeout)
	defer cancel()

	if err := newChecker(cfg, false).Run(ctx); err != nil {
		return err
	}

	s, err := newSession(ctx, cfg, cmd.OutOrStdout(), false)
	if err != nil {
		return err
	}
	defer s.cleanup()

	p, err := s.releaser.Plan(ctx)
	if err != nil {
		return err
	}
	return writePlan(cmd.OutOrStdout(), p, planFormat)
}

func writePlan(w io.Writer, p *release.Plan, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case "", "text":
		return writePlanText(w, p)
	default:
		return fmt.Errorf("unknown format %q (expected text, json or yaml)", format)
	}
}

func writePlanText(w io.Writer, p *release.Plan) error {
	var b strings.Builder
	fmt.Fprintf(&b, "package:    %s\n", p.Package)
	if p.Prior != nil {
		fmt.Fprintf(&b, "prior:      %s (%s)\n", p.Prior.Version, shortSHA(p.Prior.GitHead))
	} else {
		fmt.Fprintf(&b, "prior:      none\n")
	}
	if p.Skipped {
		fmt.Fprintf(&b, "action:     skip (build commit already released)\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "source:     %s (%d messages)\n", p.Source, p.Messages)
	fmt.Fprintf(&b, "bump:       %s\n", p.Bump)
	fmt.Fprintf(&b, "current:    %s\n", p.Current)
	if p.Next != "" {
		fmt.Fprintf(&b, "next:       %s\n", p.Next)
		fmt.Fprintf(&b, "tag:        %s\n", p.Tag)
	} else {
		fmt.Fprintf(&b, "next:       unknown (npm decides)\n")
	}
	fmt.Fprintf(&b, "registries: %s\n", strings.Join(p.Registries, ", "))
	_, err := io.WriteString(w, b.String())
	return err
}

func shortSHA(sha string) string {
	if sha == "" {
		return "no gitHead"
	}
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "text", "Output format: text, json or yaml")
	planCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip preflight checks")
	planCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort after this duration (0 means no limit)")
	rootCmd.AddCommand(planCmd)
}
