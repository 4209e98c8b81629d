// SPDX-License-Identifier: MPL-2.0

package addons

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apikcloud/oops/internal/manifest"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrShallowHistory is returned when HEAD has fewer ancestors than requested.
var ErrShallowHistory = errors.New("not enough history")

type (
	// Base is the revision a diff starts from.
	Base struct {
		Commit *object.Commit
		// Label is the tag name or "HEAD~N".
		Label string
	}

	// Changes lists the files that differ between two revisions. Files in a
	// submodule are prefixed with the submodule path.
	Changes struct {
		Files []string
		// Unresolved lists submodule paths whose history could not be read
		// (typically not checked out). Their own files are missing from Files.
		Unresolved []string
	}
)

// Head returns the commit HEAD points to.
func Head(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	return repo.CommitObject(ref.Hash())
}

// LastTag returns the most recently committed tag. The second result is
// false when the repository has no tags.
func LastTag(repo *git.Repository) (Base, bool, error) {
	tags, err := repo.Tags()
	if err != nil {
		return Base{}, false, err
	}
	defer tags.Close()

	var best Base
	found := false
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		commit, err := tagCommit(repo, ref.Hash())
		if err != nil {
			return nil //nolint:nilerr // tags on trees or blobs are ignored
		}
		name := ref.Name().Short()
		if !found || commit.Committer.When.After(best.Commit.Committer.When) ||
			(commit.Committer.When.Equal(best.Commit.Committer.When) && name > best.Label) {
			best, found = Base{Commit: commit, Label: name}, true
		}
		return nil
	})
	return best, found, err
}

func tagCommit(repo *git.Repository, h plumbing.Hash) (*object.Commit, error) {
	if tag, err := repo.TagObject(h); err == nil {
		return tag.Commit()
	}
	return repo.CommitObject(h)
}

// Ancestor returns the n-th first-parent ancestor of head.
func Ancestor(head *object.Commit, n int) (Base, error) {
	c := head
	for i := range n {
		parent, err := c.Parent(0)
		if err != nil {
			return Base{}, fmt.Errorf("HEAD~%d: only %d ancestor(s): %w", n, i, ErrShallowHistory)
		}
		c = parent
	}
	return Base{Commit: c, Label: fmt.Sprintf("HEAD~%d", n)}, nil
}

// ResolveBase picks the last tag when useTag is set and a tag exists, and
// HEAD~commits otherwise.
func ResolveBase(repo *git.Repository, head *object.Commit, useTag bool, commits int) (Base, error) {
	if useTag {
		base, ok, err := LastTag(repo)
		if err != nil {
			return Base{}, err
		}
		if ok {
			return base, nil
		}
	}
	return Ancestor(head, max(commits, 1))
}

// Changed lists files that differ between base and head. Submodules whose
// recorded commit moved are opened under root and diffed as well.
func Changed(root string, base, head *object.Commit) (Changes, error) {
	var out Changes
	files, gitlinks, err := diffCommits(base, head)
	if err != nil {
		return out, err
	}
	out.Files = files

	for _, link := range gitlinks {
		sub, err := git.PlainOpen(filepath.Join(root, filepath.FromSlash(link.path)))
		if err != nil {
			out.Unresolved = append(out.Unresolved, link.path)
			continue
		}
		from, errFrom := sub.CommitObject(link.from)
		to, errTo := sub.CommitObject(link.to)
		if errFrom != nil || errTo != nil {
			out.Unresolved = append(out.Unresolved, link.path)
			continue
		}
		subFiles, _, err := diffCommits(from, to)
		if err != nil {
			out.Unresolved = append(out.Unresolved, link.path)
			continue
		}
		for _, f := range subFiles {
			out.Files = append(out.Files, path.Join(link.path, f))
		}
	}

	slices.Sort(out.Files)
	out.Files = slices.Compact(out.Files)
	return out, nil
}

type gitlink struct {
	path     string
	from, to plumbing.Hash
}

func diffCommits(base, head *object.Commit) ([]string, []gitlink, error) {
	baseTree, err := base.Tree()
	if err != nil {
		return nil, nil, err
	}
	headTree, err := head.Tree()
	if err != nil {
		return nil, nil, err
	}
	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, nil, fmt.Errorf("diff %s..%s: %w", base.Hash, head.Hash, err)
	}

	var files []string
	var links []gitlink
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		files = append(files, name)
		if ch.From.TreeEntry.Mode == filemode.Submodule && ch.To.TreeEntry.Mode == filemode.Submodule &&
			ch.From.TreeEntry.Hash != ch.To.TreeEntry.Hash {
			links = append(links, gitlink{path: name, from: ch.From.TreeEntry.Hash, to: ch.To.TreeEntry.Hash})
		}
	}
	return files, links, nil
}

// ModifiedAddons maps changed files to the technical names of the addons
// containing them: the nearest parent directory of each file that holds a
// manifest in the working tree at root. Names are sorted and unique.
func ModifiedAddons(root string, files, manifestNames []string) []string {
	if len(manifestNames) == 0 {
		manifestNames = manifest.DefaultNames
	}
	known := make(map[string]string)
	var names []string
	for _, f := range files {
		for dir := path.Dir(f); dir != "." && dir != "/" && !strings.HasPrefix(dir, ".."); dir = path.Dir(dir) {
			name, checked := known[dir]
			if !checked {
				if _, err := manifest.Find(filepath.Join(root, filepath.FromSlash(dir)), manifestNames); err == nil {
					name = path.Base(dir)
				}
				known[dir] = name
			}
			if name != "" {
				names = append(names, name)
				break
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}
