// SPDX-License-Identifier: MPL-2.0

// Package vcs is the version-control boundary of oops.
//
// Backend is the capability set the submodule registry and the
// reconciliation executor depend on. Git implements it with the git command
// line for index and submodule operations and go-git for repository
// discovery and config-file codecs. Tests use vcstest.Fake instead.
package vcs
