// SPDX-License-Identifier: MPL-2.0

// Package config loads oops settings with Viper, using CUE as the file format.
//
// Built-in defaults are overlaid with the per-user file
// (os.UserConfigDir()/oops/config.cue), then the repository's .oops.cue, then
// OOPS_* environment variables. A --config flag replaces both files. Every
// file is validated against the embedded config_schema.cue before merging.
package config
