// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/apikcloud/oops/internal/addons"
	"github.com/apikcloud/oops/internal/project"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

// newProjectCommand creates the `oops project` command group.
func newProjectCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Check project conventions and maintain generated files",
	}
	cmd.AddCommand(newProjectCheckCommand(app))
	cmd.AddCommand(newProjectExcludeCommand(app))
	return cmd
}

func newProjectCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Look for the mandatory and recommended project files",
		Long: `Look for the files listed in project.mandatory_files and
project.recommended_files at the repository root. Exits with status 1 when a
mandatory file is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runProjectCheck(cmd.Context())
		},
	}
}

func (a *App) runProjectCheck(ctx context.Context) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	root := s.backend.Root()
	report, err := project.Check(root, s.cfg.Project.MandatoryFiles, s.cfg.Project.RecommendedFiles)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}

	switch version, err := project.OdooVersion(root); {
	case err == nil:
		fmt.Fprintf(a.stdout, "Odoo version: %s\n", CmdStyle.Render(version))
	case errors.Is(err, fs.ErrNotExist):
	default:
		s.logger.Warn("cannot read odoo version", "error", err)
	}

	for _, name := range report.MissingMandatory {
		fmt.Fprintln(a.stdout, ErrorStyle.Render("Missing mandatory file: ")+name)
	}
	for _, name := range report.MissingRecommended {
		fmt.Fprintln(a.stdout, WarningStyle.Render("Missing recommended file: ")+name)
	}
	if !report.OK() {
		return foundProblems(len(report.MissingMandatory))
	}
	if len(report.MissingRecommended) == 0 {
		fmt.Fprintln(a.stdout, SuccessStyle.Render("All project files are present."))
	}
	return nil
}

func newProjectExcludeCommand(app *App) *cobra.Command {
	var noCommit bool
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Write the pre-commit exclusion file from the symlinked addons",
		Long: `Write project.exclusions_file with one entry per addon symlinked at the
repository root, so pre-commit hooks skip vendored code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runProjectExclude(cmd.Context(), noCommit)
		},
	}
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "stage the file without committing")
	return cmd
}

func (a *App) runProjectExclude(ctx context.Context, noCommit bool) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	root := s.backend.Root()

	entries, errs := addons.List(s.scanner.WithShallow(true), root, nil)
	for _, err := range errs {
		s.logger.Warn("unreadable manifest", "error", err)
	}
	var names []string
	for _, e := range addons.Filter(entries, nil, true) {
		names = append(names, e.TechnicalName)
	}

	file := s.cfg.Project.ExclusionsFile
	if file == "" {
		file = project.DefaultExclusionsFile
	}
	if !noCommit {
		if err := s.requireClean(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}
	changed, err := project.WriteExclusions(root, file, names)
	if err != nil {
		return a.fail(types.ExitFailure, fmt.Errorf("write %s: %w", file, err))
	}
	if !changed {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render(file+" is up to date."))
		return nil
	}
	fmt.Fprintf(a.stdout, "Wrote %s (%d addon(s)).\n", CmdStyle.Render(file), len(names))

	if err := s.backend.Stage(ctx, file); err != nil {
		return a.fail(types.ExitFailure, fmt.Errorf("stage %s: %w", file, err))
	}
	if noCommit {
		return nil
	}
	if err := s.commit(ctx, msgPreCommitExclude, ""); err != nil {
		return a.fail(types.ExitFailure, err)
	}
	return nil
}
