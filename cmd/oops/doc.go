// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for oops.
//
// This package implements the Cobra command hierarchy for the oops CLI:
// submodule reconciliation (check, prune, rewrite, rename, sync, branch,
// fix, replace, clean, update, show, add), addon inventory and diffs,
// project checks, and configuration management.
package cmd
