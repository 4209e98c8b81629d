// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/apikcloud/oops/internal/fsops"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/config"
)

// Git implements Backend with the git command line for index and
// submodule operations and go-git for repository discovery.
type Git struct {
	root   string
	gitDir string
	repo   *git.Repository
}

var _ Backend = (*Git)(nil)

// Open finds the repository enclosing dir.
func Open(dir string) (*Git, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", abs, ErrNotRepository)
		}
		return nil, fmt.Errorf("open repository at %s: %w", abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%s: bare repositories are not supported: %w", abs, ErrNotRepository)
	}

	root := wt.Filesystem.Root()
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return nil, err
	}
	return &Git{root: root, gitDir: gitDir, repo: repo}, nil
}

// resolveGitDir follows a ".git" file to the real git directory.
func resolveGitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", fmt.Errorf("%s: %w", root, ErrNotRepository)
	}
	if info.IsDir() {
		return dotGit, nil
	}
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", err
	}
	ref, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir:")
	if !ok {
		return "", fmt.Errorf("%s: malformed .git file: %w", root, ErrNotRepository)
	}
	ref = filepath.FromSlash(strings.TrimSpace(ref))
	if !filepath.IsAbs(ref) {
		ref = filepath.Join(root, ref)
	}
	return ref, nil
}

// Root returns the absolute working tree path.
func (g *Git) Root() string { return g.root }

// GitDir returns the absolute git directory path.
func (g *Git) GitDir() string { return g.gitDir }

// Repository exposes the go-git handle for history queries.
func (g *Git) Repository() *git.Repository { return g.repo }

func (g *Git) abs(rel string) string {
	return filepath.Join(g.root, filepath.FromSlash(rel))
}

// run executes git in the working tree and returns trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	return runIn(ctx, g.root, args...)
}

func runIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		command := ""
		for _, arg := range args {
			if !strings.HasPrefix(arg, "-") {
				command = arg
				break
			}
		}
		return "", &GitError{
			Command: command,
			Args:    args,
			Stdout:  strings.TrimSpace(stdout.String()),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ReadConfig decodes a git-config formatted file.
func (g *Git) ReadConfig(file string) (*config.Config, error) { return ReadConfigFile(file) }

// WriteConfig atomically replaces a git-config formatted file.
func (g *Git) WriteConfig(file string, cfg *config.Config) error { return WriteConfigFile(file, cfg) }

// RemoveSection drops a section or subsection. A missing file or section is
// not an error.
func (g *Git) RemoveSection(file, section, subsection string) error {
	cfg, err := ReadConfigFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !cfg.HasSection(section) {
		return nil
	}
	if subsection == "" {
		cfg.RemoveSection(section)
	} else {
		if !cfg.Section(section).HasSubsection(subsection) {
			return nil
		}
		cfg.RemoveSubsection(section, subsection)
	}
	return WriteConfigFile(file, cfg)
}

// Move relocates src to dst with "git mv", which also repoints submodule
// metadata. When git refuses (untracked or unsupported paths) it falls back
// to a filesystem move and stages both sides.
func (g *Git) Move(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(g.abs(dst)), 0o755); err != nil {
		return err
	}

	if _, err := g.run(ctx, "mv", "-k", "--", src, dst); err == nil {
		if _, statErr := os.Lstat(g.abs(dst)); statErr == nil {
			return nil
		}
	}

	if err := fsops.MoveDir(g.abs(src), g.abs(dst)); err != nil {
		return err
	}
	if err := relinkGitfile(g.abs(src), g.abs(dst)); err != nil {
		return fmt.Errorf("repoint moved submodule %s: %w", dst, err)
	}
	return g.Stage(ctx, src, dst)
}

// Stage records the current state of each path in the index, including
// deletions.
func (g *Git) Stage(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		if _, err := os.Lstat(g.abs(p)); err != nil {
			if err := g.RemoveFromIndex(ctx, p); err != nil {
				return err
			}
			continue
		}
		if _, err := g.run(ctx, "add", "-A", "--", p); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromIndex drops path from the index, leaving the work tree alone.
func (g *Git) RemoveFromIndex(ctx context.Context, path string) error {
	_, err := g.run(ctx, "rm", "-r", "-q", "--cached", "--ignore-unmatch", "--", path)
	return err
}

// SyncSubmoduleURLs copies .gitmodules URLs into the repository config.
func (g *Git) SyncSubmoduleURLs(ctx context.Context) error {
	_, err := g.run(ctx, "submodule", "sync", "--recursive")
	return err
}

// DeinitSubmodule unregisters the submodule at path. Paths unknown to the
// index are ignored.
func (g *Git) DeinitSubmodule(ctx context.Context, path string) error {
	out, err := g.run(ctx, "ls-files", "--stage", "--", path)
	if err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	_, err = g.run(ctx, "submodule", "deinit", "-f", "--", path)
	return err
}

// InitSubmodule checks out the submodule at path.
func (g *Git) InitSubmodule(ctx context.Context, path string) error {
	_, err := g.run(ctx, "submodule", "update", "--init", "--", path)
	return err
}

// AddSubmodule registers a new submodule.
func (g *Git) AddSubmodule(ctx context.Context, url, path, name, branch string) error {
	args := []string{"submodule", "add"}
	if name != "" {
		args = append(args, "--name", name)
	}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, "--", url, path)
	_, err := g.run(ctx, args...)
	return err
}

// UpdateSubmodule fast-forwards the submodule at path to the tip of branch.
func (g *Git) UpdateSubmodule(ctx context.Context, path, branch string) error {
	dir := g.abs(path)
	if _, err := runIn(ctx, dir, "fetch", "origin", branch); err != nil {
		return err
	}
	if _, err := runIn(ctx, dir, "checkout", branch); err != nil {
		return err
	}
	_, err := runIn(ctx, dir, "pull", "--ff-only", "origin", branch)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

// IsClean reports whether "git status" lists nothing outside submodules.
func (g *Git) IsClean(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain", "--ignore-submodules=dirty")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// Commit records the index with message.
func (g *Git) Commit(ctx context.Context, message string, skipHooks bool) error {
	args := []string{"commit", "-m", message}
	if skipHooks {
		args = append(args, "--no-verify")
	}
	_, err := g.run(ctx, args...)
	return err
}
