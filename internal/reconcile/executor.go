// SPDX-License-Identifier: MPL-2.0

package reconcile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apikcloud/oops/internal/fsops"
	"github.com/apikcloud/oops/internal/scan"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/internal/vcs"

	"github.com/charmbracelet/log"
)

type (
	// ExecutorOptions configures an Executor.
	ExecutorOptions struct {
		// SkipDirs are not entered while rewriting symlinks.
		SkipDirs []string
		// LegacyBaseDirs are removed once nothing but empty directories is
		// left in them.
		LegacyBaseDirs []string
		// Logger receives progress, skip and failure messages.
		Logger *log.Logger
	}

	// Executor applies accepted plan items to a repository.
	Executor struct {
		backend  vcs.Backend
		registry *submodule.Registry
		opts     ExecutorOptions
		logger   *log.Logger
	}

	// Failure pairs an item with the reason it could not be applied.
	Failure struct {
		Item Item
		Err  error
	}

	// Report summarizes an Apply call.
	Report struct {
		Applied []Item
		Skipped []Item
		Failed  []Failure
		// SymlinksRewritten lists links whose target was updated after a move.
		SymlinksRewritten []string
		// Touched lists every staged path, sorted.
		Touched []string
		DryRun  bool
	}
)

// NewExecutor returns an Executor working on registry through backend.
func NewExecutor(backend vcs.Backend, registry *submodule.Registry, opts ExecutorOptions) *Executor {
	if len(opts.SkipDirs) == 0 {
		opts.SkipDirs = scan.DefaultSkipDirs
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Executor{backend: backend, registry: registry, opts: opts, logger: logger}
}

// HasFailures reports whether any item failed.
func (r Report) HasFailures() bool { return len(r.Failed) > 0 }

// Description renders the applied changes as a commit message body.
func (r Report) Description() string {
	var b strings.Builder
	for _, item := range r.Applied {
		switch item.Action {
		case ActionPrune:
			fmt.Fprintf(&b, "- remove %s (%s)\n", item.Submodule, item.Old)
		case ActionRewritePath:
			fmt.Fprintf(&b, "- move %s: %s -> %s\n", item.Submodule, item.Old, item.New)
		case ActionFixBranch:
			fmt.Fprintf(&b, "- track branch %s for %s\n", item.New, item.Submodule)
		case ActionRename:
			fmt.Fprintf(&b, "- rename %s -> %s\n", item.Old, item.New)
		}
	}
	if n := len(r.SymlinksRewritten); n > 0 {
		fmt.Fprintf(&b, "\n%d symlink(s) rewritten:\n", n)
		for _, l := range r.SymlinksRewritten {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Apply executes items in order. A failing item is recorded in the report
// and the remaining items still run. The returned error is reserved for
// conditions that stop the whole run: a cancelled context or a failure to
// stage the touched paths.
func (e *Executor) Apply(ctx context.Context, items []Item, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun}
	touched := make(map[string]bool)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if dryRun {
			e.logger.Info("would apply", "action", item.Action, "submodule", item.Submodule, "from", item.Old, "to", item.New)
			report.Skipped = append(report.Skipped, item)
			continue
		}

		links, paths, err := e.apply(ctx, item)
		if err != nil {
			e.logger.Error("change failed", "action", item.Action, "submodule", item.Submodule, "error", err)
			report.Failed = append(report.Failed, Failure{Item: item, Err: err})
			continue
		}
		e.logger.Info("applied", "action", item.Action, "submodule", item.Submodule, "to", item.New)
		report.Applied = append(report.Applied, item)
		report.SymlinksRewritten = append(report.SymlinksRewritten, links...)
		for _, p := range paths {
			touched[p] = true
		}
	}

	if dryRun || len(report.Applied) == 0 {
		return report, nil
	}

	for _, dir := range e.opts.LegacyBaseDirs {
		removed, err := fsops.RemoveEmptyDirs(e.abs(dir))
		if err != nil {
			e.logger.Warn("cannot clean legacy directory", "dir", dir, "error", err)
			continue
		}
		if removed {
			e.logger.Info("removed empty legacy directory", "dir", dir)
			touched[filepath.ToSlash(filepath.Clean(dir))] = true
		}
	}

	touched[vcs.ModulesFile] = true
	for p := range touched {
		report.Touched = append(report.Touched, p)
	}
	slices.Sort(report.Touched)
	if err := e.backend.Stage(ctx, report.Touched...); err != nil {
		return report, fmt.Errorf("stage changes: %w", err)
	}
	return report, nil
}

func (e *Executor) abs(rel string) string {
	return filepath.Join(e.backend.Root(), filepath.FromSlash(rel))
}

// apply runs one item and returns the rewritten symlinks and the paths it
// touched.
func (e *Executor) apply(ctx context.Context, item Item) (links, touched []string, err error) {
	rec, ok := e.registry.Get(item.Submodule)
	if !ok {
		return nil, nil, fmt.Errorf("%q: %w", item.Submodule, submodule.ErrNotFound)
	}

	switch item.Action {
	case ActionPrune:
		if err := e.registry.Remove(ctx, rec.Name, true); err != nil {
			return nil, nil, err
		}
		return nil, []string{rec.Path}, nil

	case ActionRewritePath:
		return e.rewritePath(ctx, rec, item.New)

	case ActionFixBranch:
		return nil, nil, e.registry.SetBranch(ctx, rec.Name, item.New)

	case ActionRename:
		return nil, nil, e.registry.Rename(ctx, rec.Name, item.New)

	default:
		_, errs := item.Action.IsValid()
		return nil, nil, errs[0]
	}
}

func (e *Executor) rewritePath(ctx context.Context, rec submodule.Record, newPath string) (links, touched []string, err error) {
	oldPath := rec.Path
	if _, err := os.Lstat(e.abs(oldPath)); err != nil {
		e.logger.Warn("submodule directory missing, initializing", "submodule", rec.Name, "path", oldPath)
		if err := e.backend.InitSubmodule(ctx, oldPath); err != nil {
			return nil, nil, fmt.Errorf("source %s is missing and could not be initialized: %w", oldPath, err)
		}
		if _, err := os.Lstat(e.abs(oldPath)); err != nil {
			return nil, nil, fmt.Errorf("source %s is still missing after initialization: %w", oldPath, err)
		}
	}

	if err := e.registry.Move(ctx, rec.Name, newPath); err != nil {
		return nil, nil, err
	}

	links, err = fsops.RewriteSymlinks(e.backend.Root(), oldPath, newPath, e.opts.SkipDirs)
	if err != nil {
		return links, nil, fmt.Errorf("rewrite symlinks from %s to %s: %w", oldPath, newPath, err)
	}
	for _, l := range links {
		e.logger.Debug("symlink rewritten", "link", l, "from", oldPath, "to", newPath)
	}
	return links, append([]string{oldPath, newPath}, links...), nil
}
