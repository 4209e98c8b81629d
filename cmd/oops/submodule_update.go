// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apikcloud/oops/internal/layout"
	"github.com/apikcloud/oops/internal/reconcile"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

// newSubmoduleUpdateCommand creates `oops submodule update`.
func newSubmoduleUpdateCommand(app *App) *cobra.Command {
	var (
		flags  mutationFlags
		skipPR bool
	)
	cmd := &cobra.Command{
		Use:   "update [NAME-GLOB...]",
		Short: "Fast-forward submodules to the tip of their tracked branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runUpdate(cmd.Context(), args, skipPR, flags)
		},
	}
	cmd.Flags().BoolVar(&skipPR, "skip-pr", false, "leave pull request submodules alone")
	flags.register(cmd, false)
	return cmd
}

func (a *App) runUpdate(ctx context.Context, filter []string, skipPR bool, flags mutationFlags) error {
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
	if flags.commits() {
		if err := s.requireClean(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}

	var (
		updated []string
		failed  int
	)
	for _, rec := range updatable(reg.Records(), filter, skipPR, s) {
		branch := rec.BranchOr("")
		fmt.Fprintf(a.stdout, "Updating %s to the tip of %s\n", CmdStyle.Render(rec.Name), branch)
		if flags.dryRun {
			continue
		}
		if err := s.backend.UpdateSubmodule(ctx, rec.Path, branch); err != nil {
			s.logger.Error("update failed", "submodule", rec.Name, "error", err)
			failed++
			continue
		}
		if err := s.backend.Stage(ctx, rec.Path); err != nil {
			return a.fail(types.ExitFailure, fmt.Errorf("stage %s: %w", rec.Path, err))
		}
		updated = append(updated, fmt.Sprintf("%s (%s)", rec.Name, branch))
	}

	if flags.commits() && len(updated) > 0 {
		if err := s.commit(ctx, msgSubmodulesUpdate, bulletList(updated)); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}
	if failed > 0 {
		return a.fail(types.ExitFailure, fmt.Errorf("%d submodule(s) could not be updated: %w", failed, errPartialApply))
	}
	if !flags.dryRun {
		fmt.Fprintln(a.stdout, SuccessStyle.Render(fmt.Sprintf("Updated %d submodule(s).", len(updated))))
	}
	return nil
}

// updatable selects the records update can act on, logging why the others
// are skipped.
func updatable(records []submodule.Record, filter []string, skipPR bool, s *session) []submodule.Record {
	var out []submodule.Record
	for _, rec := range records {
		switch {
		case !reconcile.MatchAny(filter, rec.Name, rec.Path):
		case rec.Path == "":
			s.logger.Warn("skipping submodule", "name", rec.Name, "reason", "no path declared")
		case rec.BranchOr("") == "":
			s.logger.Warn("skipping submodule", "name", rec.Name, "reason", "no branch declared")
		case skipPR && rec.IsPullRequest():
			s.logger.Info("skipping pull request submodule", "name", rec.Name)
		default:
			out = append(out, rec)
		}
	}
	return out
}

// newSubmoduleCleanCommand creates `oops submodule clean`.
func newSubmoduleCleanCommand(app *App) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove legacy submodule directories and check out missing submodules",
		Long: `Remove the directories listed in submodules.legacy_base_dirs, unless a
declared submodule still lives there, then initialize every declared
submodule whose directory is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runClean(cmd.Context(), dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be removed only")
	return cmd
}

func (a *App) runClean(ctx context.Context, dryRun bool) error {
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
	root := s.backend.Root()
	records := reg.Records()

	var removeFailed, initFailed int
	for _, dir := range s.cfg.Submodules.LegacyBaseDirs {
		abs := filepath.Join(root, filepath.FromSlash(dir))
		if _, err := os.Lstat(abs); err != nil {
			continue
		}
		if owner, inUse := declaredUnder(records, dir); inUse {
			s.logger.Warn("keeping legacy directory", "dir", dir, "reason", "submodule "+owner+" still lives there")
			continue
		}
		fmt.Fprintf(a.stdout, "Removing %s\n", CmdStyle.Render(dir))
		if dryRun {
			continue
		}
		if err := a.removeAll(abs); err != nil {
			s.logger.Error("cannot remove legacy directory", "dir", dir, "error", err)
			removeFailed++
		}
	}

	for _, rec := range records {
		if rec.Path == "" {
			continue
		}
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rec.Path))); err == nil {
			continue
		}
		fmt.Fprintf(a.stdout, "Checking out %s at %s\n", CmdStyle.Render(rec.Name), rec.Path)
		if dryRun {
			continue
		}
		if err := s.backend.InitSubmodule(ctx, rec.Path); err != nil {
			s.logger.Error("cannot initialize submodule", "submodule", rec.Name, "error", err)
			initFailed++
		}
	}
	switch {
	case removeFailed > 0 && initFailed > 0:
		return a.fail(types.ExitFailure, fmt.Errorf("%d legacy director(ies) could not be removed and %d submodule(s) could not be initialized: %w",
			removeFailed, initFailed, errPartialApply))
	case removeFailed > 0:
		return a.fail(types.ExitFailure, fmt.Errorf("%d legacy director(ies) could not be removed: %w", removeFailed, errPartialApply))
	case initFailed > 0:
		return a.fail(types.ExitFailure, fmt.Errorf("%d submodule(s) could not be initialized: %w", initFailed, errPartialApply))
	}
	return nil
}

// declaredUnder returns a submodule declared inside dir, if any.
func declaredUnder(records []submodule.Record, dir string) (string, bool) {
	for _, rec := range records {
		if layout.UnderBase(rec.Path, dir) {
			return rec.Name, true
		}
	}
	return "", false
}
