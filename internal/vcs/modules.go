// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/config"
)

// ErrInvalidModuleName is returned for submodule names git would refuse as a
// module directory: empty, absolute, or holding a ".." segment.
var ErrInvalidModuleName = errors.New("invalid submodule name")

// ValidateModuleName reports whether name can safely name a directory under
// the repository's modules directory.
func ValidateModuleName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("%q: %w", name, ErrInvalidModuleName)
	}
	for seg := range strings.FieldsFuncSeq(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("%q: %w", name, ErrInvalidModuleName)
		}
	}
	return nil
}

// ModuleDir returns the metadata directory of submodule name under gitDir.
// The result always lies strictly inside gitDir/modules.
func ModuleDir(gitDir, name string) (string, error) {
	if err := ValidateModuleName(name); err != nil {
		return "", err
	}
	base := filepath.Join(gitDir, "modules")
	dir := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(base, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidModuleName)
	}
	return dir, nil
}

// RenameModule moves git's own record of a submodule from oldName to
// newName: the submodule section of the repository config and the module
// directory, after which the work tree at path is repointed. Parts that do
// not exist (submodule never initialized) are skipped.
func RenameModule(b Backend, oldName, newName, path string) error {
	newDir, err := ModuleDir(b.GitDir(), newName)
	if err != nil {
		return err
	}
	// git ignores metadata for unsafe names, so there is none to move
	oldDir, oldErr := ModuleDir(b.GitDir(), oldName)
	moveDir := false
	if oldErr == nil {
		if _, err := os.Stat(oldDir); err == nil {
			moveDir = true
		}
	}
	if moveDir {
		if _, err := os.Lstat(newDir); err == nil {
			return fmt.Errorf("module directory %s: %w", newDir, fs.ErrExist)
		}
	}

	local := filepath.Join(b.GitDir(), "config")
	cfg, err := b.ReadConfig(local)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	default:
		if renameSubsection(cfg, SubmoduleSection, oldName, newName) {
			if err := b.WriteConfig(local, cfg); err != nil {
				return err
			}
		}
	}

	if !moveDir {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(newDir), 0o755); err != nil {
		return err
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return err
	}
	pruneEmptyParents(filepath.Dir(oldDir), filepath.Join(b.GitDir(), "modules"))
	return pointWorktree(filepath.Join(b.Root(), filepath.FromSlash(path)), newDir)
}

// renameSubsection replaces section.oldName with section.newName in place,
// dropping any stale newName entry. It reports whether cfg changed.
func renameSubsection(cfg *config.Config, section, oldName, newName string) bool {
	if !cfg.HasSection(section) || !cfg.Section(section).HasSubsection(oldName) {
		return false
	}
	s := cfg.Section(section)
	options := slices.Clone(s.Subsection(oldName).Options)
	if s.HasSubsection(newName) {
		cfg.RemoveSubsection(section, newName)
	}
	for i, sub := range s.Subsections {
		if sub.Name == oldName {
			s.Subsections[i] = &config.Subsection{Name: newName, Options: options}
			break
		}
	}
	return true
}

// pruneEmptyParents removes dir and its ancestors while they are empty,
// stopping at stop.
func pruneEmptyParents(dir, stop string) {
	for dir != stop && strings.HasPrefix(dir, stop+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
