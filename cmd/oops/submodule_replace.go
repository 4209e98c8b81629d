// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/apikcloud/oops/internal/config"
	"github.com/apikcloud/oops/internal/fsops"
	"github.com/apikcloud/oops/internal/issue"
	"github.com/apikcloud/oops/internal/layout"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/internal/vcs"
	"github.com/apikcloud/oops/pkg/repourl"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

// replaceRequest holds the inputs of `submodule replace` and `submodule add`.
type replaceRequest struct {
	olds   []string
	url    string
	branch string
	name   string
	flags  mutationFlags
}

// newSubmoduleReplaceCommand creates `oops submodule replace`.
func newSubmoduleReplaceCommand(app *App) *cobra.Command {
	var req replaceRequest
	cmd := &cobra.Command{
		Use:   "replace OLD... --url URL",
		Short: "Replace submodules with another repository and repoint their symlinks",
		Long: `Add the repository at --url under the base directory (or reuse it when
it is already declared), remove the submodules named OLD, and rewrite every
symlink that pointed into them so it points into the new submodule.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.olds = args
			return app.runReplace(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&req.url, "url", "", "repository URL of the replacement")
	cmd.Flags().StringVarP(&req.branch, "branch", "b", "", "branch to track (default is submodules.default_branch)")
	cmd.Flags().StringVar(&req.name, "name", "", "submodule name (default is owner/repo)")
	_ = cmd.MarkFlagRequired("url")
	req.flags.register(cmd, false)
	return cmd
}

// newSubmoduleAddCommand creates `oops submodule add`.
func newSubmoduleAddCommand(app *App) *cobra.Command {
	var req replaceRequest
	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Add a submodule under the base directory, named owner/repo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.url = args[0]
			return app.runReplace(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVarP(&req.branch, "branch", "b", "", "branch to track (default is submodules.default_branch)")
	cmd.Flags().StringVar(&req.name, "name", "", "submodule name (default is owner/repo)")
	req.flags.register(cmd, false)
	return cmd
}

// target resolves the URL, name, path and branch of the new submodule.
func (r replaceRequest) target(cfg *config.Config) (submodule.Record, error) {
	u, err := repourl.Parse(r.url)
	if err != nil {
		return submodule.Record{}, err
	}
	url := r.url
	if scheme := cfg.Submodules.ForceScheme; scheme != config.SchemeKeep {
		target := repourl.Scheme(scheme)
		if url, err = u.Encode(target, target == repourl.SchemeSSH); err != nil {
			return submodule.Record{}, err
		}
	}
	rec := submodule.Record{
		Name: r.name,
		Path: layout.DesiredPath(u, cfg.Submodules.BaseDir, false, ""),
		URL:  url,
	}
	if rec.Name == "" {
		rec.Name = layout.DesiredIdentifier(u, false, "")
	}
	branch := r.branch
	if branch == "" {
		branch = cfg.Submodules.DefaultBranch
	}
	if branch != "" {
		rec.Branch = &branch
	}
	return rec, nil
}

func (a *App) runReplace(ctx context.Context, req replaceRequest) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	target, err := req.target(s.cfg)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}

	reg, ok, err := s.registry(ctx)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	if !ok && len(req.olds) > 0 {
		return a.fail(types.ExitUsage, newServiceError(submodule.ErrMissingDeclarationFile, issue.MissingDeclarationFileId, ""))
	}
	var olds []submodule.Record
	for _, name := range req.olds {
		rec, found := reg.Get(name)
		if !found {
			return a.fail(types.ExitUsage, fmt.Errorf("%q: %w", name, submodule.ErrNotFound))
		}
		olds = append(olds, rec)
	}

	existing, reuse := submodule.Record{}, false
	if ok {
		existing, reuse = reg.Get(target.Name)
	}
	if reuse {
		fmt.Fprintf(a.stdout, "Submodule %s already exists at %s, reusing it.\n", CmdStyle.Render(target.Name), existing.Path)
	} else {
		fmt.Fprintf(a.stdout, "Adding %s at %s (branch %s)\n", CmdStyle.Render(target.URL), target.Path, target.BranchOr("default"))
	}
	for _, old := range olds {
		fmt.Fprintf(a.stdout, "Removing %s (%s)\n", CmdStyle.Render(old.Name), old.Path)
	}
	if req.flags.dryRun {
		return nil
	}
	if req.flags.commits() {
		if err := s.requireClean(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}

	newPath := target.Path
	switch {
	case reuse:
		newPath = existing.Path
		if target.HasBranch() && existing.BranchOr("") != target.BranchOr("") {
			if err := reg.SetBranch(ctx, existing.Name, target.BranchOr("")); err != nil {
				return a.fail(types.ExitFailure, err)
			}
		}
	case ok:
		if err := reg.Add(ctx, target); err != nil {
			return a.fail(types.ExitFailure, collisionAware(err))
		}
	default:
		if err := s.backend.AddSubmodule(ctx, target.URL, target.Path, target.Name, target.BranchOr("")); err != nil {
			return a.fail(types.ExitFailure, fmt.Errorf("add submodule %q: %w", target.Name, err))
		}
		if reg, _, err = s.registry(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}
	touched := []string{vcs.ModulesFile, newPath}

	var links []string
	for _, old := range olds {
		if err := reg.Remove(ctx, old.Name, true); err != nil {
			return a.fail(types.ExitFailure, err)
		}
		rewritten, err := fsops.RewriteSymlinks(s.backend.Root(), old.Path, newPath, s.cfg.Scan.SkipDirs)
		if err != nil {
			return a.fail(types.ExitFailure, fmt.Errorf("rewrite symlinks into %s: %w", old.Path, err))
		}
		links = append(links, rewritten...)
		touched = append(touched, old.Path)
	}
	touched = append(touched, links...)
	if err := s.backend.Stage(ctx, touched...); err != nil {
		return a.fail(types.ExitFailure, fmt.Errorf("stage changes: %w", err))
	}
	if len(links) > 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render(fmt.Sprintf("Rewrote %d symlink(s).", len(links))))
	}

	if !req.flags.commits() {
		return nil
	}
	title, body := replaceMessage(target, olds, newPath, links)
	if err := s.commit(ctx, title, body); err != nil {
		return a.fail(types.ExitFailure, err)
	}
	return nil
}

// replaceMessage builds the commit message of a replace or add run.
func replaceMessage(target submodule.Record, olds []submodule.Record, path string, links []string) (string, string) {
	if len(olds) == 0 {
		return fmt.Sprintf(msgSubmoduleAdd, target.Name), bulletList([]string{
			"url: " + target.URL,
			"branch: " + target.BranchOr(""),
			"path: " + path,
		})
	}
	lines := make([]string, 0, len(olds))
	for _, old := range olds {
		lines = append(lines, fmt.Sprintf("replaced '%s' with '%s' (branch=%s)", old.Name, target.Name, target.BranchOr("")))
	}
	body := bulletList(lines)
	if len(links) > 0 {
		body += fmt.Sprintf("\n\n%d symlink(s) rewritten", len(links))
	}
	return msgSubmodulesReplace, body
}

// collisionAware attaches the collision issue to registry collisions.
func collisionAware(err error) error {
	var collision *submodule.CollisionError
	if errors.As(err, &collision) {
		return newServiceError(err, issue.SubmoduleCollisionId, "")
	}
	return err
}
