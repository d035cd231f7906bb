package release

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/holon-run/merge-release/pkg/registry"
)

// Plan is the projected outcome of a run, computed without side effects.
type Plan struct {
	Package    string                `json:"package" yaml:"package"`
	Skipped    bool                  `json:"skipped" yaml:"skipped"`
	Prior      *registry.PackageInfo `json:"prior,omitempty" yaml:"prior,omitempty"`
	Source     MessageSource         `json:"source,omitempty" yaml:"source,omitempty"`
	Messages   int                   `json:"messages" yaml:"messages"`
	Bump       Bump                  `json:"bump,omitempty" yaml:"bump,omitempty"`
	Current    string                `json:"current,omitempty" yaml:"current,omitempty"`
	Next       string                `json:"next,omitempty" yaml:"next,omitempty"`
	Tag        string                `json:"tag,omitempty" yaml:"tag,omitempty"`
	Registries []string              `json:"registries" yaml:"registries"`
}

// Plan resolves the prior release, classifies the pending changes and
// projects the next version. Nothing is modified, published or tagged.
func (r *Releaser) Plan(ctx context.Context) (*Plan, error) {
	d, err := r.decide(ctx)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Package:    d.name,
		Skipped:    d.skipped,
		Prior:      d.prior,
		Source:     d.source,
		Messages:   len(d.messages),
		Bump:       d.bump,
		Registries: r.cfg.Registries(),
	}
	if d.skipped {
		return p, nil
	}

	current, err := r.deps.Packages.PublishedVersion(ctx, r.cfg.SrcPackageDir, d.name, p.Registries[0])
	if err != nil {
		return nil, err
	}
	p.Current = current
	p.Next = Project(current, d.bump)
	if p.Next != "" {
		p.Tag = TagName(p.Next)
	}
	return p, nil
}

// Project applies bump to version. It returns "" when version is not a
// semantic version; npm remains the authority on the real result.
func Project(version string, bump Bump) string {
	v, err := semver.NewVersion(version)
	if err != nil {
		return ""
	}

	var next semver.Version
	switch bump {
	case BumpMajor:
		next = v.IncMajor()
	case BumpMinor:
		next = v.IncMinor()
	default:
		next = v.IncPatch()
	}
	return next.String()
}
