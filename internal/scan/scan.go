// SPDX-License-Identifier: MPL-2.0

package scan

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/apikcloud/oops/internal/manifest"
)

// DefaultSkipDirs are never entered during a walk.
var DefaultSkipDirs = []string{".git", "setup"}

type (
	// Options controls a Scanner's traversal.
	Options struct {
		// SkipDirs are directory names that are never entered.
		SkipDirs []string
		// ManifestNames are checked in order; the first present one marks an addon.
		ManifestNames []string
		// Shallow stops the walk one level below the root.
		Shallow bool
	}

	// Scanner walks a working tree. It holds no state between calls; every
	// walk starts from scratch.
	Scanner struct {
		opts Options
	}

	// Addon is an addon directory discovered during a walk.
	Addon struct {
		TechnicalName string
		// Path is the absolute path as walked (symlinks are not resolved).
		Path string
		// RelPath is Path relative to the walk root, slash-separated.
		RelPath string
		// IsSymlink is set when the addon directory itself is a symlink.
		IsSymlink    bool
		ManifestFile string
		Manifest     manifest.Manifest
	}

	// Symlink is a symbolic link found in the tree.
	Symlink struct {
		// Path is the link location relative to the root, slash-separated.
		Path string
		// RawTarget is the link text exactly as stored.
		RawTarget string
		// Target is RawTarget resolved lexically against the link's directory,
		// relative to the root. Empty when the target escapes the root or is absolute.
		Target string
		// Broken is set when the resolved target does not exist.
		Broken bool
	}
)

// New returns a Scanner, filling empty option lists with defaults.
func New(opts Options) *Scanner {
	if len(opts.SkipDirs) == 0 {
		opts.SkipDirs = DefaultSkipDirs
	}
	if len(opts.ManifestNames) == 0 {
		opts.ManifestNames = manifest.DefaultNames
	}
	return &Scanner{opts: opts}
}

// Options returns the effective options.
func (s *Scanner) Options() Options { return s.opts }

// WithShallow returns a copy of the scanner with Shallow set to shallow.
func (s *Scanner) WithShallow(shallow bool) *Scanner {
	opts := s.opts
	opts.Shallow = shallow
	return &Scanner{opts: opts}
}

func (s *Scanner) skip(name string) bool {
	return slices.Contains(s.opts.SkipDirs, name)
}

// Addons walks root and yields every addon directory. Symlinked directories
// are followed, but links found inside a followed link are not. An addon
// whose manifest cannot be decoded is yielded together with the error.
func (s *Scanner) Addons(root string) iter.Seq2[Addon, error] {
	return func(yield func(Addon, error) bool) {
		root = filepath.Clean(root)
		s.walkAddons(root, root, 0, false, yield)
	}
}

func (s *Scanner) walkAddons(root, dir string, depth int, inLink bool, yield func(Addon, error) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(Addon{Path: dir}, fmt.Errorf("read directory %s: %w", dir, err))
	}

	if name, err := manifest.Find(dir, s.opts.ManifestNames); err == nil {
		addon := s.newAddon(root, dir, name)
		m, err := manifest.ReadFile(filepath.Join(dir, name))
		addon.Manifest = m
		if !yield(addon, err) {
			return false
		}
	}

	if s.opts.Shallow && depth >= 1 {
		return true
	}

	for _, entry := range entries {
		if s.skip(entry.Name()) {
			continue
		}
		child := filepath.Join(dir, entry.Name())
		isLink := entry.Type()&fs.ModeSymlink != 0
		switch {
		case entry.IsDir():
		case isLink && !inLink:
			info, err := os.Stat(child)
			if err != nil || !info.IsDir() {
				continue
			}
		default:
			continue
		}
		if !s.walkAddons(root, child, depth+1, inLink || isLink, yield) {
			return false
		}
	}
	return true
}

func (s *Scanner) newAddon(root, dir, manifestFile string) Addon {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		rel = dir
	}
	info, err := os.Lstat(dir)
	return Addon{
		TechnicalName: filepath.Base(dir),
		Path:          dir,
		RelPath:       filepath.ToSlash(rel),
		IsSymlink:     err == nil && info.Mode()&fs.ModeSymlink != 0,
		ManifestFile:  manifestFile,
	}
}

// Symlinks lists every symbolic link below root without following any of
// them, sorted by path. With brokenOnly, only links whose target is missing
// are returned.
func (s *Scanner) Symlinks(root string, brokenOnly bool) ([]Symlink, error) {
	root = filepath.Clean(root)
	var links []Symlink

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if d.IsDir() && p != root && s.skip(d.Name()) {
			return filepath.SkipDir
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		raw, err := os.Readlink(p)
		if err != nil {
			return fmt.Errorf("read symlink %s: %w", p, err)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		_, statErr := os.Stat(p)
		link := Symlink{
			Path:      filepath.ToSlash(rel),
			RawTarget: raw,
			Target:    resolveTarget(filepath.ToSlash(rel), raw),
			Broken:    errors.Is(statErr, fs.ErrNotExist),
		}
		if !brokenOnly || link.Broken {
			links = append(links, link)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Path < links[j].Path })
	return links, nil
}

// resolveTarget joins a relative link target onto the link's directory,
// returning "" when the result leaves the root.
func resolveTarget(linkPath, raw string) string {
	raw = filepath.ToSlash(raw)
	if path.IsAbs(raw) {
		return ""
	}
	resolved := path.Join(path.Dir(linkPath), raw)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return ""
	}
	return resolved
}

// IsDirEmpty reports whether dir is an existing directory with no entries.
// A missing path is not empty.
func IsDirEmpty(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	return errors.Is(err, io.EOF)
}
