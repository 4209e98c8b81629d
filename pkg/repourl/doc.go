// SPDX-License-Identifier: MPL-2.0

// Package repourl parses git remote URLs into (scheme, host, owner, repo)
// and re-encodes them into a chosen transport.
//
// All surface forms of a repository canonicalize to the same
// https://host/owner/repo string, which is what the rest of oops compares.
package repourl
