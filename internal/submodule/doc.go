// SPDX-License-Identifier: MPL-2.0

// Package submodule owns the declared submodules of a repository.
//
// The Registry is the only writer of .gitmodules. Each operation keeps the
// declaration file, the git index and the on-disk work tree in step through
// a vcs.Backend, and the file itself is always replaced atomically.
package submodule
