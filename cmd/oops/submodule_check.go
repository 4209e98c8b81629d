// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/apikcloud/oops/internal/config"
	"github.com/apikcloud/oops/internal/reconcile"
	"github.com/apikcloud/oops/internal/scan"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/internal/vcs"
	"github.com/apikcloud/oops/pkg/repourl"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

// Finding kinds, in report order.
const (
	findingPath          findingKind = "path"
	findingUnused        findingKind = "unused"
	findingName          findingKind = "name"
	findingBranch        findingKind = "branch"
	findingScheme        findingKind = "scheme"
	findingDeprecated    findingKind = "deprecated"
	findingRemoteBranch  findingKind = "remote-branch"
	findingSkipped       findingKind = "skipped"
	findingBrokenSymlink findingKind = "broken-symlink"
)

type (
	findingKind string

	// finding is one problem reported by `submodule check`.
	finding struct {
		Kind      findingKind `json:"kind" yaml:"kind" toml:"kind"`
		Submodule string      `json:"submodule,omitempty" yaml:"submodule,omitempty" toml:"submodule,omitempty"`
		Detail    string      `json:"detail" yaml:"detail" toml:"detail"`
	}

	// remoteLister lists the branches of a remote repository.
	remoteLister func(ctx context.Context, url string) ([]string, error)
)

var findingTitles = map[findingKind]string{
	findingPath:          "Submodules outside the base directory",
	findingUnused:        "Unused submodules (no symlink points to them)",
	findingName:          "Submodules not named owner/repo",
	findingBranch:        "Submodules without a branch",
	findingScheme:        "Submodules with a URL in another scheme",
	findingDeprecated:    "Submodules using a deprecated repository",
	findingRemoteBranch:  "Submodules tracking a branch missing upstream",
	findingSkipped:       "Submodules that could not be checked",
	findingBrokenSymlink: "Broken symlinks",
}

// newSubmoduleCheckCommand creates `oops submodule check`.
func newSubmoduleCheckCommand(app *App) *cobra.Command {
	var (
		remote bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report submodules that do not follow the layout",
		Long: `Report submodules that do not follow the layout: paths outside the base
directory, names other than owner/repo, submodules nothing links to, missing
branches, URLs in the wrong scheme, deprecated repositories and broken
symlinks. Exits with status 1 when anything is found.

With --remote, the tracked branch of every submodule is looked up on its
remote.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, formatText, formatJSON, formatYAML)
			if err != nil {
				return app.fail(types.ExitUsage, err)
			}
			var lister remoteLister
			if remote {
				lister = vcs.RemoteBranches
			}
			return app.runCheck(cmd.Context(), f, lister)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "verify tracked branches exist on the remote")
	cmd.Flags().StringVar(&format, "format", string(formatText), "output format: text, json or yaml")
	return cmd
}

func (a *App) runCheck(ctx context.Context, format outputFormat, lister remoteLister) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	reg, ok, err := s.registry(ctx)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	if !ok {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No .gitmodules found."))
		return nil
	}
	links, err := s.symlinks()
	if err != nil {
		return a.fail(types.ExitFailure, fmt.Errorf("scan symlinks: %w", err))
	}

	findings := append([]finding{}, checkSubmodules(s.cfg, reg.Records(), links)...)
	if lister != nil {
		findings = append(findings, checkRemoteBranches(ctx, reg.Records(), lister)...)
	}
	for _, l := range links {
		if l.Broken {
			findings = append(findings, finding{Kind: findingBrokenSymlink, Detail: l.Path + " -> " + l.RawTarget})
		}
	}
	sortFindings(findings)

	if format != formatText {
		if err := writeListing(a.stdout, format, listing{Key: "findings", Records: findings}); err != nil {
			return err
		}
	} else {
		printFindings(a.stdout, findings, s.cfg.Submodules.BaseDir)
	}
	if len(findings) > 0 {
		return foundProblems(len(findings))
	}
	return nil
}

// checkSubmodules derives findings from the plan a full sync would make,
// plus URL scheme and deprecation checks.
func checkSubmodules(cfg *config.Config, records []submodule.Record, links []scan.Symlink) []finding {
	plan := reconcile.NewPlanner(reconcile.Options{
		BaseDir: cfg.Submodules.BaseDir,
		Actions: []reconcile.Action{reconcile.ActionPrune, reconcile.ActionRewritePath, reconcile.ActionRename},
	}).Plan(records, links)

	var out []finding
	for _, item := range plan.Items {
		switch item.Action {
		case reconcile.ActionPrune:
			out = append(out, finding{Kind: findingUnused, Submodule: item.Submodule, Detail: item.Old})
		case reconcile.ActionRewritePath:
			out = append(out, finding{Kind: findingPath, Submodule: item.Submodule, Detail: item.Old + " (expected " + item.New + ")"})
		case reconcile.ActionRename:
			out = append(out, finding{Kind: findingName, Submodule: item.Submodule, Detail: "expected " + item.New})
		}
	}
	for _, w := range plan.Warnings {
		out = append(out, finding{Kind: findingSkipped, Submodule: w.Submodule, Detail: w.Reason})
	}

	scheme := repourl.Scheme(cfg.Submodules.ForceScheme)
	for _, rec := range records {
		if !rec.HasBranch() && !rec.IsPullRequest() {
			out = append(out, finding{Kind: findingBranch, Submodule: rec.Name, Detail: rec.Path})
		}
		if rec.URL == "" {
			continue
		}
		if repl, ok := cfg.Submodules.Replacement(rec.URL); ok {
			out = append(out, finding{Kind: findingDeprecated, Submodule: rec.Name, Detail: "replace with " + repl})
		}
		if scheme == "" {
			continue
		}
		if u, err := repourl.Parse(rec.URL); err == nil && !sameScheme(u.Scheme, scheme) {
			out = append(out, finding{Kind: findingScheme, Submodule: rec.Name, Detail: rec.URL})
		}
	}
	return out
}

// sameScheme treats http as https: both encode to the same web URL.
func sameScheme(have, want repourl.Scheme) bool {
	if have == repourl.SchemeHTTP {
		have = repourl.SchemeHTTPS
	}
	return have == want
}

// checkRemoteBranches asks each remote whether the tracked branch exists.
func checkRemoteBranches(ctx context.Context, records []submodule.Record, lister remoteLister) []finding {
	var out []finding
	for _, rec := range records {
		if !rec.HasBranch() || rec.URL == "" {
			continue
		}
		branch := rec.BranchOr("")
		branches, err := lister(ctx, rec.URL)
		if err != nil {
			out = append(out, finding{Kind: findingSkipped, Submodule: rec.Name, Detail: err.Error()})
			continue
		}
		if !slices.Contains(branches, branch) {
			out = append(out, finding{Kind: findingRemoteBranch, Submodule: rec.Name, Detail: branch})
		}
	}
	return out
}

var findingOrder = []findingKind{
	findingPath, findingUnused, findingName, findingBranch, findingScheme,
	findingDeprecated, findingRemoteBranch, findingSkipped, findingBrokenSymlink,
}

func sortFindings(findings []finding) {
	slices.SortStableFunc(findings, func(x, y finding) int {
		return slices.Index(findingOrder, x.Kind) - slices.Index(findingOrder, y.Kind)
	})
}

// printFindings groups findings by kind. findings must be sorted.
func printFindings(w io.Writer, findings []finding, baseDir string) {
	if len(findings) == 0 {
		fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("All submodules are under %s, named after their repository and in use.", baseDir)))
		return
	}
	for i := 0; i < len(findings); {
		kind := findings[i].Kind
		j := i
		for j < len(findings) && findings[j].Kind == kind {
			j++
		}
		fmt.Fprintln(w, ErrorStyle.Render(fmt.Sprintf("%s (%d):", findingTitles[kind], j-i)))
		for _, f := range findings[i:j] {
			if f.Submodule == "" {
				fmt.Fprintf(w, "  - %s\n", f.Detail)
				continue
			}
			fmt.Fprintf(w, "  - %s: %s\n", CmdStyle.Render(f.Submodule), f.Detail)
		}
		i = j
	}
}
