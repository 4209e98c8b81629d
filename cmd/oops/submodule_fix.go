// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/apikcloud/oops/internal/config"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/pkg/repourl"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

type (
	// urlChange is a declared URL rewritten into the forced scheme.
	urlChange struct {
		Submodule string
		Old       string
		New       string
	}

	// deprecatedUse is a submodule whose repository has a replacement.
	deprecatedUse struct {
		Submodule   string
		Replacement string
	}
)

// newSubmoduleFixCommand creates `oops submodule fix`.
func newSubmoduleFixCommand(app *App) *cobra.Command {
	var (
		flags  mutationFlags
		scheme string
	)
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Rewrite submodule URLs into one scheme and report deprecated repositories",
		Long: `Rewrite the URL of every submodule into the scheme given by --scheme or
submodules.force_scheme, and list submodules whose repository is declared
deprecated in submodules.deprecated_repositories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runFix(cmd.Context(), config.URLScheme(scheme), flags)
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "", "target scheme: https or ssh (default is submodules.force_scheme)")
	flags.register(cmd, false)
	return cmd
}

func (a *App) runFix(ctx context.Context, scheme config.URLScheme, flags mutationFlags) error {
	if ok, errs := scheme.IsValid(); !ok {
		return a.fail(types.ExitUsage, errs[0])
	}
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	if scheme == config.SchemeKeep {
		scheme = s.cfg.Submodules.ForceScheme
	}
	reg, ok, err := s.registry(ctx)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	if !ok {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No .gitmodules found, nothing to do."))
		return nil
	}

	changes, deprecated := planURLFixes(s.cfg.Submodules, scheme, reg.Records())
	for _, d := range deprecated {
		s.logger.Warn("deprecated repository", "submodule", d.Submodule, "replacement", d.Replacement)
	}
	if len(deprecated) > 0 {
		fmt.Fprintln(a.stdout, WarningStyle.Render(fmt.Sprintf("Deprecated repositories (%d):", len(deprecated))))
		for _, d := range deprecated {
			fmt.Fprintf(a.stdout, "  - %s: use %s (%s)\n", CmdStyle.Render(d.Submodule), d.Replacement,
				SubtitleStyle.Render("oops submodule replace "+d.Submodule+" --url "+d.Replacement))
		}
	}
	if len(changes) == 0 {
		fmt.Fprintln(a.stdout, SuccessStyle.Render("All submodule URLs already use the expected scheme."))
		return nil
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render(fmt.Sprintf("URLs to update (%d)", len(changes))))
	for _, c := range changes {
		fmt.Fprintf(a.stdout, "  %s: %s -> %s\n", CmdStyle.Render(c.Submodule), c.Old, c.New)
	}
	if flags.dryRun {
		return nil
	}
	if flags.commits() {
		if err := s.requireClean(ctx); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}

	var applied []string
	failed := 0
	for _, c := range changes {
		if err := reg.SetURL(ctx, c.Submodule, c.New); err != nil {
			s.logger.Error("cannot update url", "submodule", c.Submodule, "error", err)
			failed++
			continue
		}
		applied = append(applied, c.Submodule+": "+c.New)
	}
	if flags.commits() && len(applied) > 0 {
		if err := s.commit(ctx, msgSubmodulesFixURLs, bulletList(applied)); err != nil {
			return a.fail(types.ExitFailure, err)
		}
	}
	if failed > 0 {
		return a.fail(types.ExitFailure, fmt.Errorf("%d url(s) could not be updated: %w", failed, errPartialApply))
	}
	return nil
}

// planURLFixes lists URL rewrites into scheme and deprecated repositories.
// Malformed URLs are left alone.
func planURLFixes(cfg config.SubmodulesConfig, scheme config.URLScheme, records []submodule.Record) ([]urlChange, []deprecatedUse) {
	var (
		changes    []urlChange
		deprecated []deprecatedUse
	)
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		if repl, ok := cfg.Replacement(rec.URL); ok {
			deprecated = append(deprecated, deprecatedUse{Submodule: rec.Name, Replacement: repl})
		}
		if scheme == config.SchemeKeep {
			continue
		}
		u, err := repourl.Parse(rec.URL)
		if err != nil {
			continue
		}
		target := repourl.Scheme(scheme)
		if sameScheme(u.Scheme, target) {
			continue
		}
		encoded, err := u.Encode(target, target == repourl.SchemeSSH)
		if err != nil {
			continue
		}
		changes = append(changes, urlChange{Submodule: rec.Name, Old: rec.URL, New: encoded})
	}
	return changes, deprecated
}
