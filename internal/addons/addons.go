// SPDX-License-Identifier: MPL-2.0

// Package addons inventories Odoo addons and relates them to the
// submodules that provide them.
package addons

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apikcloud/oops/internal/fsops"
	"github.com/apikcloud/oops/internal/layout"
	"github.com/apikcloud/oops/internal/scan"
	"github.com/apikcloud/oops/internal/submodule"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrOutsideRepository is returned when a path to materialize is not inside
// the working tree.
var ErrOutsideRepository = errors.New("path is outside the repository")

type (
	// Entry is an addon together with the submodule it comes from, if any.
	Entry struct {
		scan.Addon
		// Source is the root-relative directory the addon resolves to.
		Source    string
		Submodule *submodule.Record
	}

	// MaterializeResult reports the outcome for one path.
	MaterializeResult struct {
		Path string
		Err  error
	}
)

// Version returns the manifest version, or "" when the manifest could not be read.
func (e Entry) Version() string { return e.Manifest.Version() }

// Author returns the manifest author.
func (e Entry) Author() string { return e.Manifest.String("author") }

// List walks root and returns the addons found there, each resolved to the
// declared submodule that contains it. Addons reachable twice (a symlink and
// its target) are listed once, as the symlink. Manifests that fail to parse are collected
// in errs without stopping the walk. Entries are sorted by technical name.
func List(scanner *scan.Scanner, root string, records []submodule.Record) (entries []Entry, errs []error) {
	seen := make(map[string]int)
	for addon, err := range scanner.Addons(root) {
		if err != nil {
			errs = append(errs, err)
			if addon.TechnicalName == "" {
				continue
			}
		}
		source := resolve(root, addon)
		key := source
		if key == "" {
			key = addon.RelPath
		}

		entry := Entry{Addon: addon, Source: source}
		if rec, ok := owner(source, records); ok {
			entry.Submodule = &rec
		}
		// the symlink is how the addon is exposed, so it wins over its target
		if i, dup := seen[key]; dup {
			if addon.IsSymlink && !entries[i].IsSymlink {
				entries[i] = entry
			}
			continue
		}
		seen[key] = len(entries)
		entries = append(entries, entry)
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.TechnicalName, b.TechnicalName), cmp.Compare(a.RelPath, b.RelPath))
	})
	return entries, errs
}

// resolve returns the root-relative location of the addon directory,
// following a symlinked addon to its target.
func resolve(root string, addon scan.Addon) string {
	if !addon.IsSymlink {
		return addon.RelPath
	}
	raw, err := os.Readlink(addon.Path)
	if err != nil {
		return ""
	}
	raw = filepath.ToSlash(raw)
	if path.IsAbs(raw) {
		rel, err := filepath.Rel(root, filepath.FromSlash(raw))
		if err != nil {
			return ""
		}
		return filepath.ToSlash(rel)
	}
	return path.Join(path.Dir(addon.RelPath), raw)
}

// owner finds the submodule whose path contains source.
func owner(source string, records []submodule.Record) (submodule.Record, bool) {
	if source == "" {
		return submodule.Record{}, false
	}
	var best submodule.Record
	found := false
	for _, rec := range records {
		if rec.Path == "" || !layout.UnderBase(source, rec.Path) {
			continue
		}
		if !found || len(rec.Path) > len(best.Path) {
			best, found = rec, true
		}
	}
	return best, found
}

// Filter keeps entries whose technical name or relative path matches one of
// patterns. With symlinksOnly, addons that are not symlinks are dropped.
func Filter(entries []Entry, patterns []string, symlinksOnly bool) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if symlinksOnly && !e.IsSymlink {
			continue
		}
		if len(patterns) > 0 && !matchAny(patterns, e.TechnicalName, e.RelPath) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchAny(patterns []string, values ...string) bool {
	for _, p := range patterns {
		for _, v := range values {
			if ok, err := doublestar.Match(p, v); (err == nil && ok) || p == v {
				return true
			}
		}
	}
	return false
}

// Materialize replaces each symlinked addon in paths (relative to root, or
// absolute inside it) with a real copy of its target. Failures are reported
// per path; the remaining paths are still processed.
func Materialize(root string, paths []string) []MaterializeResult {
	results := make([]MaterializeResult, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, p)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			results = append(results, MaterializeResult{Path: p, Err: fmt.Errorf("%s: %w", p, ErrOutsideRepository)})
			continue
		}
		results = append(results, MaterializeResult{Path: filepath.ToSlash(rel), Err: fsops.Materialize(abs)})
	}
	return results
}
