// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	NotARepositoryId Id = iota + 1
	MissingDeclarationFileId
	ConfigLoadFailedId
	DirtyWorktreeId
	GitNotFoundId
	SubmoduleCollisionId
	ShallowHistoryId
	PartialApplyId
)

type (
	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry explaining a failure class and how to recover.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the catalog identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the raw Markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render returns the body rendered for a terminal with the given glamour style.
func (i *Issue) Render(style string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, style)
}

var (
	render = glamour.Render

	notARepositoryIssue = &Issue{
		id: NotARepositoryId,
		mdMsg: `
# Not inside a git repository

oops works on the repository containing the current directory.

## Things you can try:
- Change into your Odoo project before running the command:
~~~
$ cd /path/to/project
$ oops submodule check
~~~
- Initialize a repository if this is a new project:
~~~
$ git init
~~~`,
	}

	missingDeclarationFileIssue = &Issue{
		id: MissingDeclarationFileId,
		mdMsg: `
# No .gitmodules file

The repository does not declare any submodules, so there is nothing to reconcile.

## Things you can try:
- Check that you are at the right project root
- Add a dependency first:
~~~
$ oops submodule add https://github.com/OCA/web --branch 18.0
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

Your oops configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration with defaults:
~~~
$ oops config show
~~~
- Regenerate a default file and edit it:
~~~
$ oops config init --force
~~~

## Example:
~~~cue
submodules: {
	base_dir:       ".third-party"
	default_branch: "18.0"
}
~~~`,
	}

	dirtyWorktreeIssue = &Issue{
		id: DirtyWorktreeId,
		mdMsg: `
# Working tree has uncommitted changes

Commands that commit refuse to run on a dirty tree so your own changes are
not mixed into the generated commit.

## Things you can try:
- Commit or stash your changes first:
~~~
$ git stash
~~~
- Keep the changes staged only, without committing:
~~~
$ oops submodule fix --no-commit
~~~`,
	}

	gitNotFoundIssue = &Issue{
		id: GitNotFoundId,
		mdMsg: `
# git executable not found

Submodule mutations are delegated to the git command line.

## Things you can try:
- Install git and make sure it is in your PATH
- Check with:
~~~
$ git --version
~~~`,
	}

	submoduleCollisionIssue = &Issue{
		id: SubmoduleCollisionId,
		mdMsg: `
# Submodule name or path already in use

Two submodules would end up with the same name or the same directory. The
operation was skipped and the repository was left untouched.

## Things you can try:
- Inspect the declarations:
~~~
$ oops submodule show
~~~
- Remove the duplicate dependency, then run the fix again:
~~~
$ oops submodule prune
$ oops submodule fix
~~~`,
	}

	shallowHistoryIssue = &Issue{
		id: ShallowHistoryId,
		mdMsg: `
# Not enough history

The comparison base lies beyond the available commits, which usually means a
shallow clone.

## Things you can try:
- Fetch the full history:
~~~
$ git fetch --unshallow --tags
~~~
- Compare with fewer commits:
~~~
$ oops addons diff --commits 1
~~~`,
	}

	partialApplyIssue = &Issue{
		id: PartialApplyId,
		mdMsg: `
# Some changes could not be applied

Every other accepted change was applied and staged. Nothing was committed.

## Things you can try:
- Review the failures listed above and the staged changes:
~~~
$ git status
~~~
- Run the command again; completed steps are not planned twice`,
	}

	issues = map[Id]*Issue{
		notARepositoryIssue.Id():         notARepositoryIssue,
		missingDeclarationFileIssue.Id(): missingDeclarationFileIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		dirtyWorktreeIssue.Id():          dirtyWorktreeIssue,
		gitNotFoundIssue.Id():            gitNotFoundIssue,
		submoduleCollisionIssue.Id():     submoduleCollisionIssue,
		shallowHistoryIssue.Id():        shallowHistoryIssue,
		partialApplyIssue.Id():          partialApplyIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id) - int(b.id) })
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
