// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// The helpers build work trees on disk: files (MustWriteFile), directories
// (MustMkdirAll), symlinks (MustSymlink, MustReadlink) and addon manifests
// (Manifest). Each one fails the test immediately on error.
package testutil
