// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/apikcloud/oops/internal/config"
	"github.com/apikcloud/oops/internal/issue"
	"github.com/apikcloud/oops/internal/reconcile"
	"github.com/apikcloud/oops/internal/tui"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

var (
	errDirtyWorktree = errors.New("working tree has uncommitted changes")
	errPartialApply  = errors.New("some changes could not be applied")
	errNoBranch      = errors.New("no default branch: pass --default or set submodules.default_branch")
)

type (
	// mutationFlags are shared by every command that changes the repository.
	mutationFlags struct {
		dryRun   bool
		noCommit bool
		force    bool
	}

	// reconcileRequest describes one planner-driven run.
	reconcileRequest struct {
		actions []reconcile.Action
		// filter holds doublestar patterns over names and paths.
		filter []string
		// defaultBranch overrides submodules.default_branch when set.
		defaultBranch string
		title         string
		flags         mutationFlags
	}
)

// newSubmoduleCommand creates the `oops submodule` command tree.
func newSubmoduleCommand(app *App) *cobra.Command {
	subCmd := &cobra.Command{
		Use:     "submodule",
		Aliases: []string{"submodules", "sub"},
		Short:   "Inspect and reconcile vendored submodules",
		Long: `Inspect and reconcile the submodules declared in .gitmodules.

Mutating commands print the planned changes and ask before applying each
one. Pass --force to apply everything without asking, or --dry-run to only
print what would change. Applied changes are committed unless --no-commit
is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	subCmd.AddCommand(newSubmoduleCheckCommand(app))
	subCmd.AddCommand(newPlannedCommand(app, "prune [NAME-GLOB...]", "Remove submodules no symlink points to",
		msgSubmodulesPrune, reconcile.ActionPrune))
	subCmd.AddCommand(newPlannedCommand(app, "rewrite [NAME-GLOB...]", "Move submodules under the base directory",
		msgSubmodulesRewrite, reconcile.ActionRewritePath))
	subCmd.AddCommand(newPlannedCommand(app, "rename [NAME-GLOB...]", "Rename submodules to owner/repo",
		msgSubmodulesRename, reconcile.ActionRename))
	subCmd.AddCommand(newPlannedCommand(app, "sync [NAME-GLOB...]", "Prune, move, fix branches and rename in one run",
		msgSubmodulesSync, reconcile.Actions()...))
	subCmd.AddCommand(newSubmoduleBranchCommand(app))
	subCmd.AddCommand(newSubmoduleFixCommand(app))
	subCmd.AddCommand(newSubmoduleReplaceCommand(app))
	subCmd.AddCommand(newSubmoduleCleanCommand(app))
	subCmd.AddCommand(newSubmoduleUpdateCommand(app))
	subCmd.AddCommand(newSubmoduleShowCommand(app))
	subCmd.AddCommand(newSubmoduleAddCommand(app))

	return subCmd
}

// register adds the mutation flags to cmd. Commands that never prompt do
// not get --force.
func (f *mutationFlags) register(cmd *cobra.Command, withForce bool) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "show planned changes only")
	cmd.Flags().BoolVar(&f.noCommit, "no-commit", false, "stage changes without committing them")
	if withForce {
		cmd.Flags().BoolVarP(&f.force, "force", "f", false, "apply every change without asking")
	}
}

// commits reports whether the run ends with a commit.
func (f mutationFlags) commits() bool { return !f.dryRun && !f.noCommit }

// newPlannedCommand builds a command that runs the planner restricted to
// actions.
func newPlannedCommand(app *App, use, short, title string, actions ...reconcile.Action) *cobra.Command {
	var flags mutationFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runReconcile(cmd.Context(), reconcileRequest{
				actions: actions,
				filter:  args,
				title:   title,
				flags:   flags,
			})
		},
	}
	flags.register(cmd, true)
	return cmd
}

// newSubmoduleBranchCommand creates `oops submodule branch`.
func newSubmoduleBranchCommand(app *App) *cobra.Command {
	var (
		flags         mutationFlags
		defaultBranch string
	)
	cmd := &cobra.Command{
		Use:   "branch [NAME-GLOB...]",
		Short: "Record a branch for submodules that declare none",
		Long: `Record a branch for submodules that declare none.

Pull request submodules are left alone: their branch cannot be guessed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runReconcile(cmd.Context(), reconcileRequest{
				actions:       []reconcile.Action{reconcile.ActionFixBranch},
				filter:        args,
				defaultBranch: defaultBranch,
				title:         msgSubmodulesBranch,
				flags:         flags,
			})
		},
	}
	cmd.Flags().StringVar(&defaultBranch, "default", "", "branch to record (default is submodules.default_branch)")
	flags.register(cmd, true)
	return cmd
}

// runReconcile plans, reviews, applies and commits.
func (a *App) runReconcile(ctx context.Context, req reconcileRequest) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	reg, ok, err := s.registry(ctx)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	if !ok {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No .gitmodules found, nothing to do."))
		return nil
	}
	links, err := s.symlinks()
	if err != nil {
		return a.fail(types.ExitFailure, fmt.Errorf("scan symlinks: %w", err))
	}

	branch := req.defaultBranch
	if branch == "" {
		branch = s.cfg.Submodules.DefaultBranch
	}
	if branch == "" && slices.Equal(req.actions, []reconcile.Action{reconcile.ActionFixBranch}) {
		return a.fail(types.ExitUsage, errNoBranch)
	}

	plan := reconcile.NewPlanner(reconcile.Options{
		BaseDir:       s.cfg.Submodules.BaseDir,
		DefaultBranch: branch,
		Actions:       req.actions,
		Filter:        req.filter,
	}).Plan(reg.Records(), links)

	for _, w := range plan.Warnings {
		s.logger.Warn("skipping submodule", "name", w.Submodule, "reason", w.Reason)
	}
	if plan.Empty() {
		fmt.Fprintln(a.stdout, SuccessStyle.Render("Nothing to do."))
		return nil
	}
	printPlan(a.stdout, plan.Items)

	if req.flags.commits() {
		if err := s.requireClean(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}

	accepted, rejected, err := reconcile.Accept(ctx, plan.Items, a.decider(s.cfg, req.flags))
	if err != nil {
		if errors.Is(err, tui.ErrInterrupted) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(a.stderr, WarningStyle.Render("Interrupted, nothing was applied."))
			return &ExitError{Code: types.ExitInterrupted, Err: err}
		}
		return a.fail(types.ExitFailure, err)
	}
	for _, item := range rejected {
		s.logger.Debug("skipped by review", "action", item.Action, "submodule", item.Submodule)
	}
	if len(accepted) == 0 {
		fmt.Fprintln(a.stdout, WarningStyle.Render("No change accepted.")+" "+
			SubtitleStyle.Render("Re-run with --force to apply without prompting."))
		return nil
	}

	executor := reconcile.NewExecutor(s.backend, reg, reconcile.ExecutorOptions{
		SkipDirs:       s.cfg.Scan.SkipDirs,
		LegacyBaseDirs: s.cfg.Submodules.LegacyBaseDirs,
		Logger:         s.logger,
	})
	report, err := executor.Apply(ctx, accepted, req.flags.dryRun)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	printReport(a.stdout, report)

	if req.flags.commits() && len(report.Applied) > 0 {
		if err := s.commit(ctx, req.title, report.Description()); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}
	if report.HasFailures() {
		return a.fail(types.ExitFailure, newServiceError(errPartialApply, issue.PartialApplyId, ""))
	}
	return nil
}

// decider picks how planned items are reviewed. --force and --dry-run
// accept everything; otherwise ui.interactive decides whether to prompt.
// Without a prompt nothing is applied.
func (a *App) decider(cfg *config.Config, flags mutationFlags) reconcile.Decider {
	if flags.force || flags.dryRun {
		return reconcile.AcceptAll
	}
	switch cfg.UI.Interactive {
	case config.InteractiveAlways:
		return a.NewDecider(tui.DefaultConfig())
	case config.InteractiveNever:
		return reconcile.RejectAll
	default:
		if tui.IsTerminal() {
			return a.NewDecider(tui.DefaultConfig())
		}
		return reconcile.RejectAll
	}
}

// printPlan lists the planned items.
func printPlan(w io.Writer, items []reconcile.Item) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Planned changes (%d)", len(items))))
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render(fmt.Sprintf("%-12s", item.Action)), planDetail(item))
	}
}

func planDetail(item reconcile.Item) string {
	switch item.Action {
	case reconcile.ActionPrune:
		return fmt.Sprintf("%s (%s)", item.Submodule, item.Old)
	case reconcile.ActionFixBranch:
		return fmt.Sprintf("%s: %s", item.Submodule, item.New)
	default:
		return fmt.Sprintf("%s: %s -> %s", item.Submodule, item.Old, item.New)
	}
}

// printReport summarizes an executor run.
func printReport(w io.Writer, report reconcile.Report) {
	if report.DryRun {
		fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("Dry run: %d change(s) would be applied.", len(report.Skipped))))
		return
	}
	if n := len(report.Applied); n > 0 {
		fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Applied %d change(s).", n)))
	}
	if n := len(report.SymlinksRewritten); n > 0 {
		fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("Rewrote %d symlink(s).", n)))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "%s %s: %v\n", ErrorStyle.Render("failed"), planDetail(f.Item), f.Err)
	}
}
