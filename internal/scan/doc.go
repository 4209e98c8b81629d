// SPDX-License-Identifier: MPL-2.0

// Package scan walks an Odoo working tree to find addon directories and
// symbolic links.
//
// Walks are read-only and restartable: every call re-reads the filesystem,
// so results always reflect the current tree. Skip rules and depth limits
// are passed as Options rather than hardcoded.
package scan
