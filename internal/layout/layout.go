// SPDX-License-Identifier: MPL-2.0

// Package layout computes where a vendored repository should live in the
// working tree and what its submodule should be called.
package layout

import (
	"path"
	"strings"

	"github.com/apikcloud/oops/pkg/repourl"
)

const (
	// PullRequestDir is the namespace for submodules that vendor an unmerged
	// upstream branch.
	PullRequestDir = "PRs"

	// DefaultBaseDir is where submodules are placed when no base dir is configured.
	DefaultBaseDir = ".third-party"

	pullRequestSegment = "pr"
)

// Policy carries the placement rules for one repository.
type Policy struct {
	// BaseDir is the slash-separated directory, relative to the repository
	// root, under which every submodule is expected to live.
	BaseDir string
}

// New returns a Policy rooted at baseDir, falling back to DefaultBaseDir.
func New(baseDir string) Policy {
	baseDir = strings.Trim(path.Clean("/"+strings.TrimSpace(baseDir)), "/")
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return Policy{BaseDir: baseDir}
}

// DesiredIdentifier returns "owner/repo" or "PRs/owner/repo". A pull request
// with a known suffix gets it appended so several PRs against the same
// upstream stay distinct.
func DesiredIdentifier(u repourl.URL, isPullRequest bool, suffix string) string {
	return path.Join(segments(u, isPullRequest, suffix)...)
}

// DesiredPath returns baseDir/[PRs/]owner/repo[/suffix]. The suffix is only
// used for pull requests; an unknown suffix is simply omitted.
func DesiredPath(u repourl.URL, baseDir string, isPullRequest bool, suffix string) string {
	return path.Join(append([]string{baseDir}, segments(u, isPullRequest, suffix)...)...)
}

// DesiredPath is the policy-bound form of the package function.
func (p Policy) DesiredPath(u repourl.URL, isPullRequest bool, suffix string) string {
	return DesiredPath(u, p.BaseDir, isPullRequest, suffix)
}

// Contains reports whether rel lies under the policy's base directory.
func (p Policy) Contains(rel string) bool {
	return UnderBase(rel, p.BaseDir)
}

func segments(u repourl.URL, isPullRequest bool, suffix string) []string {
	parts := make([]string, 0, 4)
	if isPullRequest {
		parts = append(parts, PullRequestDir)
	}
	parts = append(parts, u.Owner, u.Repo)
	if isPullRequest && suffix != "" {
		parts = append(parts, suffix)
	}
	return parts
}

// IsPullRequestPath reports whether a submodule path or name designates a
// pull request: one of its segments is "PRs" or "pr".
func IsPullRequestPath(p string) bool {
	for part := range strings.SplitSeq(path.Clean(strings.TrimSpace(p)), "/") {
		if part == PullRequestDir || part == pullRequestSegment {
			return true
		}
	}
	return false
}

// UnderBase reports whether rel is baseDir itself or nested below it.
func UnderBase(rel, baseDir string) bool {
	rel = path.Clean(rel)
	baseDir = path.Clean(baseDir)
	return rel == baseDir || strings.HasPrefix(rel, baseDir+"/")
}
