// SPDX-License-Identifier: MPL-2.0

// Package vcstest provides an in-process vcs.Backend for tests.
package vcstest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apikcloud/oops/internal/fsops"
	"github.com/apikcloud/oops/internal/vcs"

	"github.com/go-git/go-git/v5/plumbing/format/config"
)

// Fake is a vcs.Backend that performs filesystem work for real and records
// every git-side call instead of running git. Individual operations can be
// made to fail through Fail.
type Fake struct {
	mu sync.Mutex

	root   string
	gitDir string

	// Calls lists every recorded operation, e.g. "stage .gitmodules".
	Calls []string
	// Staged accumulates staged paths in call order.
	Staged []string
	// Commits holds committed messages.
	Commits []string
	// InitContent, when set, is written to path/README when InitSubmodule
	// materializes a missing submodule directory.
	InitContent map[string]string
	// Dirty is returned negated by IsClean.
	Dirty bool

	failures map[string]error
}

var _ vcs.Backend = (*Fake)(nil)

// New returns a Fake rooted at root with a ".git" directory created inside.
func New(root string) *Fake {
	gitDir := filepath.Join(root, ".git")
	_ = os.MkdirAll(gitDir, 0o755)
	return &Fake{root: root, gitDir: gitDir, failures: make(map[string]error)}
}

// Fail makes every call to op (e.g. "move", "sync") return err.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *Fake) record(op string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	return f.failures[op]
}

// Called reports whether an operation with the given prefix was recorded.
func (f *Fake) Called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *Fake) abs(rel string) string { return filepath.Join(f.root, filepath.FromSlash(rel)) }

// Root returns the working tree.
func (f *Fake) Root() string { return f.root }

// GitDir returns root/.git.
func (f *Fake) GitDir() string { return f.gitDir }

// ReadConfig decodes file from disk.
func (f *Fake) ReadConfig(file string) (*config.Config, error) { return vcs.ReadConfigFile(file) }

// WriteConfig writes file atomically unless "write-config" is set to fail.
func (f *Fake) WriteConfig(file string, cfg *config.Config) error {
	if err := f.record("write-config", filepath.Base(file)); err != nil {
		return err
	}
	return vcs.WriteConfigFile(file, cfg)
}

// RemoveSection drops a section or subsection from file.
func (f *Fake) RemoveSection(file, section, subsection string) error {
	if err := f.record("remove-section", filepath.Base(file), section, subsection); err != nil {
		return err
	}
	cfg, err := vcs.ReadConfigFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if subsection == "" {
		cfg.RemoveSection(section)
	} else {
		cfg.RemoveSubsection(section, subsection)
	}
	return vcs.WriteConfigFile(file, cfg)
}

// Move relocates src to dst on disk.
func (f *Fake) Move(_ context.Context, src, dst string) error {
	if err := f.record("move", src, dst); err != nil {
		return err
	}
	return fsops.MoveDir(f.abs(src), f.abs(dst))
}

// Stage records paths.
func (f *Fake) Stage(_ context.Context, paths ...string) error {
	if err := f.record("stage", paths...); err != nil {
		return err
	}
	f.mu.Lock()
	f.Staged = append(f.Staged, paths...)
	f.mu.Unlock()
	return nil
}

// RemoveFromIndex records the call.
func (f *Fake) RemoveFromIndex(_ context.Context, path string) error {
	return f.record("rm-cached", path)
}

// SyncSubmoduleURLs records the call.
func (f *Fake) SyncSubmoduleURLs(context.Context) error { return f.record("sync") }

// DeinitSubmodule records the call.
func (f *Fake) DeinitSubmodule(_ context.Context, path string) error {
	return f.record("deinit", path)
}

// InitSubmodule creates the submodule directory when InitContent has an
// entry for path.
func (f *Fake) InitSubmodule(_ context.Context, path string) error {
	if err := f.record("init", path); err != nil {
		return err
	}
	content, ok := f.InitContent[path]
	if !ok {
		return fmt.Errorf("submodule %s cannot be initialized", path)
	}
	dir := f.abs(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "README"), []byte(content), 0o644)
}

// AddSubmodule declares the submodule in .gitmodules and creates its directory.
func (f *Fake) AddSubmodule(_ context.Context, url, path, name, branch string) error {
	if err := f.record("add", url, path, name, branch); err != nil {
		return err
	}
	if name == "" {
		name = path
	}
	file := filepath.Join(f.root, vcs.ModulesFile)
	cfg, err := vcs.ReadConfigFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.New()
	} else if err != nil {
		return err
	}
	sub := cfg.Section(vcs.SubmoduleSection).Subsection(name)
	sub.SetOption("path", path)
	sub.SetOption("url", url)
	if branch != "" {
		sub.SetOption("branch", branch)
	}
	if err := vcs.WriteConfigFile(file, cfg); err != nil {
		return err
	}
	return os.MkdirAll(f.abs(path), 0o755)
}

// UpdateSubmodule records the call.
func (f *Fake) UpdateSubmodule(_ context.Context, path, branch string) error {
	return f.record("update", path, branch)
}

// HasStagedChanges reports whether anything was staged.
func (f *Fake) HasStagedChanges(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Staged) > 0, nil
}

// IsClean reports !Dirty.
func (f *Fake) IsClean(context.Context) (bool, error) {
	if err := f.record("status"); err != nil {
		return false, err
	}
	return !f.Dirty, nil
}

// Commit records message.
func (f *Fake) Commit(_ context.Context, message string, _ bool) error {
	if err := f.record("commit"); err != nil {
		return err
	}
	f.mu.Lock()
	f.Commits = append(f.Commits, message)
	f.mu.Unlock()
	return nil
}
