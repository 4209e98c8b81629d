// SPDX-License-Identifier: MPL-2.0

package submodule

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apikcloud/oops/internal/testutil"
	"github.com/apikcloud/oops/internal/vcs"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// runGit runs git in dir with a fixed identity and returns its output.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=oops", "GIT_AUTHOR_EMAIL=oops@example.com",
		"GIT_COMMITTER_NAME=oops", "GIT_COMMITTER_EMAIL=oops@example.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}

// newGitRepository builds a repository with the submodule old/name1
// checked out at third-party/name1.
func newGitRepository(t *testing.T) (*vcs.Git, string) {
	t.Helper()
	upstream := t.TempDir()
	runGit(t, upstream, "init", "-q")
	testutil.MustWriteFile(t, upstream, "name1_models/__manifest__.py", testutil.Manifest("name1_models"))
	runGit(t, upstream, "add", "-A")
	runGit(t, upstream, "commit", "-q", "-m", "init")

	root := t.TempDir()
	runGit(t, root, "init", "-q")
	testutil.MustWriteFile(t, root, "README.md", "project\n")
	runGit(t, root, "add", "-A")
	runGit(t, root, "commit", "-q", "-m", "init")
	runGit(t, root, "-c", "protocol.file.allow=always", "submodule", "add", "-q", "--name", "old/name1", upstream, "third-party/name1")
	runGit(t, root, "commit", "-q", "-m", "add submodule")

	g, err := vcs.Open(root)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return g, root
}

func TestRenameKeepsSubmoduleInitialized(t *testing.T) {
	requireGit(t)
	t.Parallel()

	g, root := newGitRepository(t)
	ctx := context.Background()
	reg, err := Load(ctx, g)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := reg.Rename(ctx, "old/name1", "owner1/name1"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	local, err := vcs.ReadConfigFile(filepath.Join(g.GitDir(), "config"))
	if err != nil {
		t.Fatal(err)
	}
	section := local.Section(vcs.SubmoduleSection)
	if section.HasSubsection("old/name1") {
		t.Error(".git/config still registers old/name1")
	}
	if !section.HasSubsection("owner1/name1") || section.Subsection("owner1/name1").Option("url") == "" {
		t.Errorf(".git/config does not register owner1/name1: %+v", section.Subsections)
	}
	if testutil.Exists(g.GitDir(), "modules/old") {
		t.Error("module directory of old/name1 left behind")
	}
	if !testutil.Exists(g.GitDir(), "modules/owner1/name1") {
		t.Error("module directory of owner1/name1 missing")
	}

	status := runGit(t, root, "submodule", "status")
	if !strings.HasPrefix(status, " ") || !strings.Contains(status, "third-party/name1") {
		t.Errorf("submodule status after rename = %q, want an initialized submodule", status)
	}

	if err := reg.Remove(ctx, "owner1/name1", true); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if testutil.Exists(g.GitDir(), "modules/owner1") {
		t.Error("module directory survived the cascade remove")
	}
	if testutil.Exists(root, "third-party/name1") {
		t.Error("work tree survived the cascade remove")
	}
	local, err = vcs.ReadConfigFile(filepath.Join(g.GitDir(), "config"))
	if err != nil {
		t.Fatal(err)
	}
	if local.HasSection(vcs.SubmoduleSection) && len(local.Section(vcs.SubmoduleSection).Subsections) > 0 {
		t.Errorf(".git/config still registers submodules: %+v", local.Section(vcs.SubmoduleSection).Subsections)
	}
}

func TestRemoveUnsafeNameLeavesRepositoryAlone(t *testing.T) {
	requireGit(t)
	t.Parallel()

	g, root := newGitRepository(t)
	ctx := context.Background()
	declared := testutil.MustReadFile(t, root, vcs.ModulesFile)
	testutil.MustWriteFile(t, root, vcs.ModulesFile, strings.Replace(declared, `"old/name1"`, `"../../victim"`, 1))
	testutil.MustWriteFile(t, root, "victim/keep.txt", "keep\n")

	reg, err := Load(ctx, g)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := reg.Remove(ctx, "../../victim", true); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Remove() error = %v, want ErrInvalidName", err)
	}
	if !testutil.Exists(root, "victim/keep.txt") {
		t.Error("directory outside the modules directory was deleted")
	}
	if !testutil.Exists(root, "third-party/name1/name1_models/__manifest__.py") {
		t.Error("submodule work tree was deleted")
	}
}
