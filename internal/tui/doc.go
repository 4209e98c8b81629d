// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive prompts used to review planned
// changes, built on charmbracelet/huh.
package tui
