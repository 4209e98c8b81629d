// SPDX-License-Identifier: MPL-2.0

package reconcile

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/apikcloud/oops/internal/layout"
	"github.com/apikcloud/oops/internal/scan"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/pkg/repourl"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ActionPrune removes a submodule no symlink refers to.
	ActionPrune Action = "prune"
	// ActionRewritePath moves a submodule under the base directory.
	ActionRewritePath Action = "rewrite_path"
	// ActionFixBranch records a default branch on a submodule without one.
	ActionFixBranch Action = "fix_branch"
	// ActionRename renames a submodule to its owner/repo identifier.
	ActionRename Action = "rename"
)

// ErrInvalidAction is the sentinel error wrapped by InvalidActionError.
var ErrInvalidAction = errors.New("invalid reconciliation action")

type (
	// Action is one kind of reconciliation step.
	Action string

	// InvalidActionError is returned when an Action value is not recognized.
	InvalidActionError struct {
		Value Action
	}

	// Item is a single proposed change. Old and New hold paths for
	// rewrite_path, names for rename, and branches for fix_branch.
	Item struct {
		Submodule string
		Action    Action
		Old       string
		New       string
	}

	// Warning explains why a submodule was left out of the plan.
	Warning struct {
		Submodule string
		Reason    string
	}

	// Plan is the ordered list of changes the planner proposes.
	Plan struct {
		Items    []Item
		Warnings []Warning
	}

	// Options configures a Planner.
	Options struct {
		// BaseDir is where submodules are expected to live.
		BaseDir string
		// DefaultBranch enables the fix_branch pass when non-empty.
		DefaultBranch string
		// Actions restricts the passes that run. Empty means every pass.
		Actions []Action
		// Filter keeps only submodules whose name or path matches one of the
		// doublestar patterns. Empty keeps everything.
		Filter []string
	}

	// Planner computes the difference between declared and desired
	// submodule state. It performs no I/O.
	Planner struct {
		opts Options
	}
)

// Actions lists every action in the order its pass runs.
func Actions() []Action {
	return []Action{ActionPrune, ActionRewritePath, ActionFixBranch, ActionRename}
}

// Error implements the error interface.
func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q (valid: prune, rewrite_path, fix_branch, rename)", e.Value)
}

// Unwrap returns ErrInvalidAction.
func (e *InvalidActionError) Unwrap() error { return ErrInvalidAction }

// String returns the action name.
func (a Action) String() string { return string(a) }

// IsValid returns whether the Action is a known value.
func (a Action) IsValid() (bool, []error) {
	if slices.Contains(Actions(), a) {
		return true, nil
	}
	return false, []error{&InvalidActionError{Value: a}}
}

// String renders the item for logs and prompts.
func (i Item) String() string {
	switch i.Action {
	case ActionPrune:
		return fmt.Sprintf("prune %s (%s)", i.Submodule, i.Old)
	case ActionFixBranch:
		return fmt.Sprintf("set branch of %s to %s", i.Submodule, i.New)
	default:
		return fmt.Sprintf("%s %s: %s -> %s", i.Action, i.Submodule, i.Old, i.New)
	}
}

// Empty reports whether the plan proposes nothing.
func (p Plan) Empty() bool { return len(p.Items) == 0 }

// NewPlanner returns a Planner. A blank base directory falls back to the
// layout default.
func NewPlanner(opts Options) *Planner {
	opts.BaseDir = layout.New(opts.BaseDir).BaseDir
	return &Planner{opts: opts}
}

func (p *Planner) enabled(a Action) bool {
	return len(p.opts.Actions) == 0 || slices.Contains(p.opts.Actions, a)
}

// Matches reports whether a record passes the name filter.
func (p *Planner) Matches(rec submodule.Record) bool {
	return MatchAny(p.opts.Filter, rec.Name, rec.Path)
}

// MatchAny reports whether any of values matches any pattern. An empty
// pattern list matches everything. Malformed patterns only match literally.
func MatchAny(patterns []string, values ...string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		for _, v := range values {
			if ok, err := doublestar.Match(pattern, v); (err == nil && ok) || pattern == v {
				return true
			}
		}
	}
	return false
}

// Plan runs the prune, rewrite_path, fix_branch and rename passes in that
// order over records (in declaration order). A pruned submodule is not
// considered by later passes. The same inputs always yield the same plan.
func (p *Planner) Plan(records []submodule.Record, symlinks []scan.Symlink) Plan {
	var plan Plan
	selected := make([]submodule.Record, 0, len(records))
	for _, rec := range records {
		if p.Matches(rec) {
			selected = append(selected, rec)
		}
	}

	pruned := make(map[string]bool)
	if p.enabled(ActionPrune) {
		for _, rec := range selected {
			if rec.Path == "" {
				plan.warn(rec.Name, "no path declared")
				continue
			}
			if !Referenced(rec.Path, symlinks) {
				pruned[rec.Name] = true
				plan.Items = append(plan.Items, Item{Submodule: rec.Name, Action: ActionPrune, Old: rec.Path})
			}
		}
	}

	type target struct {
		url    repourl.URL
		isPR   bool
		suffix string
	}
	targets := make(map[string]target, len(selected))
	remaining := make([]submodule.Record, 0, len(selected))
	for _, rec := range selected {
		if pruned[rec.Name] {
			continue
		}
		remaining = append(remaining, rec)
		if rec.URL == "" {
			plan.warn(rec.Name, "no url declared")
			continue
		}
		u, err := repourl.Parse(rec.URL)
		if err != nil {
			plan.warn(rec.Name, err.Error())
			continue
		}
		t := target{url: u, isPR: rec.IsPullRequest()}
		if t.isPR {
			t.suffix = PullRequestSuffix(rec.Path, symlinks)
		}
		targets[rec.Name] = t
	}

	if p.enabled(ActionRewritePath) {
		for _, rec := range remaining {
			t, ok := targets[rec.Name]
			if !ok || layout.UnderBase(rec.Path, p.opts.BaseDir) {
				continue
			}
			if t.isPR && t.suffix == "" {
				plan.warn(rec.Name, "pull request submodule has no symlink to derive its suffix from")
				continue
			}
			desired := layout.DesiredPath(t.url, p.opts.BaseDir, t.isPR, t.suffix)
			if desired != rec.Path {
				plan.Items = append(plan.Items, Item{Submodule: rec.Name, Action: ActionRewritePath, Old: rec.Path, New: desired})
			}
		}
	}

	if p.enabled(ActionFixBranch) && p.opts.DefaultBranch != "" {
		for _, rec := range remaining {
			if rec.HasBranch() || rec.IsPullRequest() {
				continue
			}
			plan.Items = append(plan.Items, Item{Submodule: rec.Name, Action: ActionFixBranch, New: p.opts.DefaultBranch})
		}
	}

	if p.enabled(ActionRename) {
		for _, rec := range remaining {
			t, ok := targets[rec.Name]
			if !ok {
				continue
			}
			desired := layout.DesiredIdentifier(t.url, t.isPR, t.suffix)
			if desired != rec.Name {
				plan.Items = append(plan.Items, Item{Submodule: rec.Name, Action: ActionRename, Old: rec.Name, New: desired})
			}
		}
	}

	return plan
}

func (p *Plan) warn(name, reason string) {
	w := Warning{Submodule: name, Reason: reason}
	if !slices.Contains(p.Warnings, w) {
		p.Warnings = append(p.Warnings, w)
	}
}

// Referenced reports whether any symlink's raw target contains subPath.
// Containment is a plain substring test so links into subdirectories of a
// submodule count as references.
func Referenced(subPath string, symlinks []scan.Symlink) bool {
	for _, s := range symlinks {
		if strings.Contains(s.RawTarget, subPath) {
			return true
		}
	}
	return false
}

// PullRequestSuffix returns the name of the first directory inside subPath
// that a symlink points at, or "" when none does.
func PullRequestSuffix(subPath string, symlinks []scan.Symlink) string {
	for _, s := range symlinks {
		for _, target := range []string{s.Target, path.Clean(s.RawTarget)} {
			if target != "" && path.Dir(target) == subPath {
				return path.Base(target)
			}
		}
	}
	return ""
}
