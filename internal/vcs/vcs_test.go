// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apikcloud/oops/internal/testutil"
)

const sampleModules = `[submodule "OCA/web"]
	path = .third-party/OCA/web
	url = https://github.com/OCA/web.git
	branch = 18.0
[submodule "third-party/tools"]
	path = third-party/tools
	url = git@github.com:apik/tools.git
`

func TestConfigFileRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := testutil.MustWriteFile(t, root, ModulesFile, sampleModules)

	cfg, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}
	subs := cfg.Section(SubmoduleSection).Subsections
	if len(subs) != 2 {
		t.Fatalf("got %d subsections, want 2", len(subs))
	}
	if subs[0].Name != "OCA/web" || subs[0].Option("branch") != "18.0" {
		t.Errorf("first subsection = %q branch %q", subs[0].Name, subs[0].Option("branch"))
	}

	cfg.Section(SubmoduleSection).Subsection("third-party/tools").SetOption("branch", "main")
	if err := WriteConfigFile(path, cfg); err != nil {
		t.Fatalf("WriteConfigFile() error = %v", err)
	}

	reread, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile() after write error = %v", err)
	}
	if got := reread.Section(SubmoduleSection).Subsection("third-party/tools").Option("branch"); got != "main" {
		t.Errorf("branch after write = %q, want main", got)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestReadConfigFileMissing(t *testing.T) {
	t.Parallel()

	_, err := ReadConfigFile(filepath.Join(t.TempDir(), ModulesFile))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadConfigFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestReadOptionAndRemoveSection(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := testutil.MustWriteFile(t, root, ModulesFile, sampleModules)
	g := &Git{root: root, gitDir: filepath.Join(root, ".git")}

	v, ok, err := ReadOption(g, path, SubmoduleSection, "OCA/web", "url")
	if err != nil || !ok || v != "https://github.com/OCA/web.git" {
		t.Errorf("ReadOption(url) = %q, %v, %v", v, ok, err)
	}
	_, ok, err = ReadOption(g, path, SubmoduleSection, "third-party/tools", "branch")
	if err != nil || ok {
		t.Errorf("ReadOption(unset branch) ok = %v, err = %v", ok, err)
	}
	_, ok, _ = ReadOption(g, path, SubmoduleSection, "missing", "url")
	if ok {
		t.Error("ReadOption(missing subsection) reported a value")
	}

	if err := g.RemoveSection(path, SubmoduleSection, "OCA/web"); err != nil {
		t.Fatalf("RemoveSection() error = %v", err)
	}
	if _, ok, _ := ReadOption(g, path, SubmoduleSection, "OCA/web", "url"); ok {
		t.Error("subsection still present after RemoveSection")
	}
	if err := g.RemoveSection(filepath.Join(root, "missing"), SubmoduleSection, "x"); err != nil {
		t.Errorf("RemoveSection(missing file) error = %v", err)
	}
	if _, ok, err := ReadOption(g, filepath.Join(root, "missing"), SubmoduleSection, "x", "url"); ok || err != nil {
		t.Errorf("ReadOption(missing file) ok = %v, err = %v", ok, err)
	}
}

func TestRelinkGitfile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, root, ".git/modules/name1/config", "[core]\n\tbare = false\n\tworktree = ../../../third-party/name1\n")
	testutil.MustWriteFile(t, root, ".third-party/owner1/name1/.git", "gitdir: ../../.git/modules/name1\n")

	// the gitfile content is still relative to the old location
	oldDir := filepath.Join(root, "third-party", "name1")
	newDir := filepath.Join(root, ".third-party", "owner1", "name1")
	if err := relinkGitfile(oldDir, newDir); err != nil {
		t.Fatalf("relinkGitfile() error = %v", err)
	}

	if got := testutil.MustReadFile(t, root, ".third-party/owner1/name1/.git"); got != "gitdir: ../../../.git/modules/name1\n" {
		t.Errorf("gitfile = %q", got)
	}
	cfg, err := ReadConfigFile(filepath.Join(root, ".git/modules/name1/config"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Section("core").Option("worktree"); got != "../../../.third-party/owner1/name1" {
		t.Errorf("core.worktree = %q", got)
	}
}

func TestGitErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 128")
	err := &GitError{Command: "mv", Stderr: "fatal: bad source", Err: cause}
	if err.Error() != "git mv: fatal: bad source" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("GitError does not unwrap to its cause")
	}
	if (&GitError{Command: "add", Err: cause}).Error() != "git add: exit status 128" {
		t.Error("Error() without stderr should fall back to the cause")
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if _, err := runIn(context.Background(), root, "init", "-q"); err != nil {
		t.Fatalf("git init: %v", err)
	}
	return root
}

func TestOpenFindsRootFromSubdirectory(t *testing.T) {
	requireGit(t)
	t.Parallel()

	root := initRepo(t)
	sub := testutil.MustMkdirAll(t, root, "addons/sale")

	g, err := Open(sub)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(g.Root())
	if gotRoot != wantRoot {
		t.Errorf("Root() = %q, want %q", g.Root(), root)
	}
	if !strings.HasSuffix(g.GitDir(), ".git") {
		t.Errorf("GitDir() = %q", g.GitDir())
	}
}

func TestOpenNotRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), ".git")); err == nil {
		t.Skip("temp dir is inside a repository")
	}
	if _, err := Open(dir); !errors.Is(err, ErrNotRepository) {
		t.Errorf("Open() error = %v, want ErrNotRepository", err)
	}
}

func TestMoveFallsBackForUntrackedDirectories(t *testing.T) {
	requireGit(t)
	t.Parallel()

	root := initRepo(t)
	testutil.MustWriteFile(t, root, "third-party/name1/models/a.py", "a\n")
	g, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := g.Move(ctx, "third-party/name1", ".third-party/owner1/name1"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if testutil.Exists(root, "third-party/name1") {
		t.Error("source still present")
	}
	if !testutil.Exists(root, ".third-party/owner1/name1/models/a.py") {
		t.Error("destination missing moved file")
	}

	staged, err := g.HasStagedChanges(ctx)
	if err != nil {
		t.Fatalf("HasStagedChanges() error = %v", err)
	}
	if !staged {
		t.Error("HasStagedChanges() = false after staging the move")
	}
}

func TestIsClean(t *testing.T) {
	requireGit(t)
	t.Parallel()

	root := initRepo(t)
	g, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	clean, err := g.IsClean(ctx)
	if err != nil || !clean {
		t.Fatalf("IsClean() on an empty repository = %v, %v", clean, err)
	}
	testutil.MustWriteFile(t, root, "README.md", "x\n")
	if clean, _ := g.IsClean(ctx); clean {
		t.Error("IsClean() = true with an untracked file")
	}
}
