// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
)

// Commit titles. Bodies are built from what was actually applied.
const (
	msgSubmodulesPrune   = "chore(submodules): remove unused submodules"
	msgSubmodulesRewrite = "chore(submodules): rewrite submodule paths to new scheme"
	msgSubmodulesRename  = "chore(submodules): rename submodules to new naming scheme"
	msgSubmodulesBranch  = "chore(submodules): update .gitmodules with fixed submodule branches"
	msgSubmodulesSync    = "chore(submodules): synchronize submodules with the layout"
	msgSubmodulesFixURLs = "chore(submodules): fix submodule URLs"
	msgSubmodulesReplace = "chore(submodules): replace submodule(s) and update symlinks"
	msgSubmodulesUpdate  = "chore(submodules): update submodules to latest upstream versions"
	msgSubmoduleAdd      = "chore(submodules): add submodule %s"
	msgMaterializeAddons = "chore: materialize addon(s) %s"
	msgPreCommitExclude  = "chore: update pre-commit exclusions"
)

// commitMessage joins a title and an optional body.
func commitMessage(title, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return title
	}
	return title + "\n\n" + body
}

// bulletList renders one "- item" line per entry.
func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
