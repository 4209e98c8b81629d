// SPDX-License-Identifier: MPL-2.0

// Package reconcile converges declared submodules toward the layout policy.
//
// The work is split in three steps that can be tested on their own:
//
//   - Planner.Plan compares registry records with the symlinks found in the
//     tree and proposes prune, rewrite_path, fix_branch and rename items.
//     It never touches the filesystem.
//   - Accept runs every item past a Decider (a terminal prompt, AcceptAll,
//     or RejectAll) which may drop or edit it.
//   - Executor.Apply performs the accepted items through the submodule
//     registry, rewrites symlinks after moves, stages the touched paths and
//     returns a Report whose Description is used as the commit body.
//
// A run that stops half way leaves the repository in a state the planner
// can pick up again: planning twice without mutations yields the same plan,
// and planning after a successful Apply yields nothing.
package reconcile
