// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/config"
)

// ReadConfigFile decodes a git-config formatted file. A missing file is
// reported with an error wrapping fs.ErrNotExist.
func ReadConfigFile(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := config.New()
	if err := config.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// WriteConfigFile encodes cfg to path through a temporary file in the same
// directory followed by a rename, so readers never see a partial file.
func WriteConfigFile(path string, cfg *config.Config) error {
	var buf bytes.Buffer
	if err := config.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// relinkGitfile repoints a moved submodule at its module directory. Both
// the ".git" file in the work tree and core.worktree in the module config
// hold relative paths that a plain directory rename invalidates.
func relinkGitfile(oldDir, newDir string) error {
	data, err := os.ReadFile(filepath.Join(newDir, ".git"))
	if err != nil {
		return nil //nolint:nilerr // no gitfile (missing or a directory); nothing to repoint
	}
	ref, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir:")
	if !ok {
		return nil
	}
	moduleDir := filepath.FromSlash(strings.TrimSpace(ref))
	if !filepath.IsAbs(moduleDir) {
		moduleDir = filepath.Join(oldDir, moduleDir)
	}
	return pointWorktree(newDir, moduleDir)
}

// pointWorktree links the work tree at workTree with moduleDir in both
// directions. A work tree without a ".git" file is left alone.
func pointWorktree(workTree, moduleDir string) error {
	gitfile := filepath.Join(workTree, ".git")
	info, err := os.Lstat(gitfile)
	if err != nil || !info.Mode().IsRegular() {
		return nil //nolint:nilerr // not a linked submodule work tree
	}

	rel, err := filepath.Rel(workTree, moduleDir)
	if err != nil {
		return err
	}
	if err := os.WriteFile(gitfile, []byte("gitdir: "+filepath.ToSlash(rel)+"\n"), info.Mode().Perm()); err != nil {
		return err
	}

	cfgPath := filepath.Join(moduleDir, "config")
	cfg, err := ReadConfigFile(cfgPath)
	if err != nil {
		return nil //nolint:nilerr // module not initialized; nothing to repoint
	}
	if !cfg.HasSection("core") || !cfg.Section("core").HasOption("worktree") {
		return nil
	}
	worktree, err := filepath.Rel(moduleDir, workTree)
	if err != nil {
		return err
	}
	cfg.Section("core").SetOption("worktree", filepath.ToSlash(worktree))
	return WriteConfigFile(cfgPath, cfg)
}
