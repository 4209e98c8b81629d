// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"testing"
	"time"

	"github.com/apikcloud/oops/internal/testutil"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
)

func TestRemoteBranchesLocalRepository(t *testing.T) {
	// the file transport runs git-upload-pack
	requireGit(t)
	t.Parallel()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	testutil.MustWriteFile(t, dir, "README.md", "upstream\n")
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "oops", Email: "oops@example.com", When: time.Now()}
	head, err := wt.Commit("init", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("18.0"), head)); err != nil {
		t.Fatal(err)
	}

	got, err := RemoteBranches(context.Background(), dir)
	if err != nil {
		t.Fatalf("RemoteBranches() error = %v", err)
	}
	if diff := cmp.Diff([]string{"18.0", "master"}, got); diff != "" {
		t.Errorf("RemoteBranches() (-want +got):\n%s", diff)
	}
}
