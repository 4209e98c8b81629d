// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apikcloud/oops/internal/addons"
	"github.com/apikcloud/oops/internal/issue"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
)

var errNoHistoryAccess = errors.New("repository history is not available")

type (
	// addonRow is one line of `addons list`.
	addonRow struct {
		Name      string `json:"name" yaml:"name" toml:"name"`
		Path      string `json:"path" yaml:"path" toml:"path"`
		Version   string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
		Author    string `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
		Symlink   bool   `json:"symlink" yaml:"symlink" toml:"symlink"`
		Submodule string `json:"submodule,omitempty" yaml:"submodule,omitempty" toml:"submodule,omitempty"`
	}

	// historyProvider is implemented by backends that expose the go-git
	// repository.
	historyProvider interface {
		Repository() *git.Repository
	}

	listAddonsRequest struct {
		all          bool
		names        []string
		symlinksOnly bool
		format       outputFormat
	}
)

// newAddonsCommand creates the `oops addons` command group.
func newAddonsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "addons",
		Aliases: []string{"addon"},
		Short:   "Inspect and materialize Odoo addons",
	}
	cmd.AddCommand(newAddonsListCommand(app))
	cmd.AddCommand(newAddonsDiffCommand(app))
	cmd.AddCommand(newAddonsMaterializeCommand(app))
	return cmd
}

func newAddonsListCommand(app *App) *cobra.Command {
	var (
		req    listAddonsRequest
		format string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List addons and the submodule each one comes from",
		Long: `List the addons exposed at the repository root. With --all, the whole
tree is walked, submodules included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, formatText, formatJSON, formatYAML, formatTOML, formatCSV, formatMarkdown)
			if err != nil {
				return app.fail(types.ExitUsage, err)
			}
			req.format = f
			return app.runListAddons(cmd.Context(), req)
		},
	}
	cmd.Flags().BoolVarP(&req.all, "all", "a", false, "walk the whole tree instead of the repository root only")
	cmd.Flags().StringSliceVar(&req.names, "name", nil, "keep addons whose name or path matches GLOB (repeatable)")
	cmd.Flags().BoolVar(&req.symlinksOnly, "symlinks-only", false, "list symlinked addons only")
	cmd.Flags().StringVar(&format, "format", string(formatText), "output format: text, json, yaml, toml, csv or markdown")
	return cmd
}

func (a *App) runListAddons(ctx context.Context, req listAddonsRequest) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	var records []submodule.Record
	if reg, ok, err := s.registry(ctx); err != nil {
		return a.fail(types.ExitFailure, err)
	} else if ok {
		records = reg.Records()
	}

	entries, errs := addons.List(s.scanner.WithShallow(!req.all), s.backend.Root(), records)
	for _, err := range errs {
		s.logger.Warn("unreadable manifest", "error", err)
	}
	entries = addons.Filter(entries, req.names, req.symlinksOnly)
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No addons found."))
		return nil
	}

	rows := addonRows(entries)
	l := listing{
		Key:     "addons",
		Headers: []string{"Name", "Version", "Path", "Symlink", "Submodule"},
		Records: rows,
	}
	for _, r := range rows {
		l.Rows = append(l.Rows, []string{r.Name, r.Version, r.Path, yesNo(r.Symlink), r.Submodule})
	}
	return writeListing(a.stdout, req.format, l)
}

func addonRows(entries []addons.Entry) []addonRow {
	rows := make([]addonRow, 0, len(entries))
	for _, e := range entries {
		row := addonRow{
			Name:    e.TechnicalName,
			Path:    e.RelPath,
			Version: e.Version(),
			Author:  e.Author(),
			Symlink: e.IsSymlink,
		}
		if e.Submodule != nil {
			row.Submodule = e.Submodule.Name
		}
		rows = append(rows, row)
	}
	return rows
}

func newAddonsDiffCommand(app *App) *cobra.Command {
	var (
		useTag  bool
		commits int
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "List addons changed since the last tag or the last N commits",
		Long: `List the addons holding files that changed between HEAD and a base
revision: the most recent tag with --tag (falling back to HEAD~N when there is
none), or HEAD~N. Submodules whose recorded commit moved are diffed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runDiffAddons(cmd.Context(), useTag, commits)
		},
	}
	cmd.Flags().BoolVar(&useTag, "tag", false, "compare with the most recent tag")
	cmd.Flags().IntVarP(&commits, "commits", "n", 1, "compare with HEAD~N")
	return cmd
}

func (a *App) runDiffAddons(ctx context.Context, useTag bool, commits int) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	hp, ok := s.backend.(historyProvider)
	if !ok || hp.Repository() == nil {
		return a.fail(types.ExitFailure, errNoHistoryAccess)
	}
	repo := hp.Repository()

	head, err := addons.Head(repo)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	base, err := addons.ResolveBase(repo, head, useTag, commits)
	if err != nil {
		if errors.Is(err, addons.ErrShallowHistory) {
			return a.fail(types.ExitFailure, newServiceError(err, issue.ShallowHistoryId, ""))
		}
		return a.fail(types.ExitFailure, err)
	}
	changes, err := addons.Changed(s.backend.Root(), base.Commit, head)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	for _, p := range changes.Unresolved {
		s.logger.Warn("submodule history unavailable, its files are not compared", "path", p)
	}

	names := addons.ModifiedAddons(s.backend.Root(), changes.Files, s.cfg.Scan.ManifestNames)
	s.logger.Debug("compared revisions", "base", base.Label, "files", len(changes.Files))
	if len(names) == 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No addon changed since "+base.Label+"."))
		return nil
	}
	fmt.Fprintln(a.stdout, TitleStyle.Render(fmt.Sprintf("Addons changed since %s (%d)", base.Label, len(names))))
	for _, n := range names {
		fmt.Fprintf(a.stdout, "  - %s\n", CmdStyle.Render(n))
	}
	return nil
}

func newAddonsMaterializeCommand(app *App) *cobra.Command {
	var flags mutationFlags
	cmd := &cobra.Command{
		Use:   "materialize PATH...",
		Short: "Replace symlinked addons with a copy of their target",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runMaterialize(cmd.Context(), args, flags)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (a *App) runMaterialize(ctx context.Context, paths []string, flags mutationFlags) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	if flags.dryRun {
		for _, p := range paths {
			fmt.Fprintf(a.stdout, "Would materialize %s\n", CmdStyle.Render(p))
		}
		return nil
	}
	if flags.commits() {
		if err := s.requireClean(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}

	var (
		done   []string
		failed int
	)
	for _, r := range addons.Materialize(s.backend.Root(), paths) {
		if r.Err != nil {
			s.logger.Error("cannot materialize", "path", r.Path, "error", r.Err)
			failed++
			continue
		}
		fmt.Fprintf(a.stdout, "Materialized %s\n", CmdStyle.Render(r.Path))
		done = append(done, r.Path)
	}
	if len(done) > 0 {
		if err := s.backend.Stage(ctx, done...); err != nil {
			return a.fail(types.ExitFailure, fmt.Errorf("stage changes: %w", err))
		}
		if flags.commits() {
			if err := s.commit(ctx, fmt.Sprintf(msgMaterializeAddons, strings.Join(done, ", ")), ""); err != nil {
				return a.fail(types.ExitFailure, err)
			}
		}
	}
	if failed > 0 {
		return a.fail(types.ExitFailure, fmt.Errorf("%d path(s) could not be materialized: %w", failed, errPartialApply))
	}
	return nil
}
