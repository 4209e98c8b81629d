// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-git/go-git/v5/plumbing/format/config"
)

const (
	// ModulesFile is the submodule declaration file at the repository root.
	ModulesFile = ".gitmodules"
	// SubmoduleSection is the config section holding submodule declarations.
	SubmoduleSection = "submodule"
)

// ErrNotRepository is returned when no git repository encloses a directory.
var ErrNotRepository = errors.New("not a git repository")

type (
	// Backend is the version-control capability set used by the submodule
	// registry and the reconciliation executor. Paths are relative to Root
	// unless noted otherwise.
	Backend interface {
		// Root is the absolute path of the working tree.
		Root() string
		// GitDir is the absolute path of the repository's git directory.
		GitDir() string

		// ReadConfig decodes a git-config formatted file (absolute path).
		ReadConfig(file string) (*config.Config, error)
		// WriteConfig atomically replaces a git-config formatted file.
		WriteConfig(file string, cfg *config.Config) error
		// RemoveSection drops a section, or one of its subsections when
		// subsection is non-empty.
		RemoveSection(file, section, subsection string) error

		Move(ctx context.Context, src, dst string) error
		Stage(ctx context.Context, paths ...string) error
		RemoveFromIndex(ctx context.Context, path string) error
		SyncSubmoduleURLs(ctx context.Context) error
		DeinitSubmodule(ctx context.Context, path string) error
		InitSubmodule(ctx context.Context, path string) error
		AddSubmodule(ctx context.Context, url, path, name, branch string) error
		UpdateSubmodule(ctx context.Context, path, branch string) error
		HasStagedChanges(ctx context.Context) (bool, error)
		// IsClean reports whether the work tree and index match HEAD.
		// Changes inside submodules are ignored.
		IsClean(ctx context.Context) (bool, error)
		Commit(ctx context.Context, message string, skipHooks bool) error
	}

	// GitError contains raw output from a failed git command.
	GitError struct {
		Command string
		Args    []string
		Stdout  string
		Stderr  string
		Err     error
	}
)

// Error implements the error interface.
func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying process error.
func (e *GitError) Unwrap() error { return e.Err }

// ReadOption returns section.subsection.key from a config file and whether
// it was set. A missing file sets nothing.
func ReadOption(b Backend, file, section, subsection, key string) (string, bool, error) {
	cfg, err := b.ReadConfig(file)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !cfg.HasSection(section) {
		return "", false, nil
	}
	s := cfg.Section(section)
	if subsection == "" {
		return s.Option(key), s.HasOption(key), nil
	}
	if !s.HasSubsection(subsection) {
		return "", false, nil
	}
	sub := s.Subsection(subsection)
	return sub.Option(key), sub.HasOption(key), nil
}
