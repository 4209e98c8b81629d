// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// reports failures with JSON-path prefixes.
//
//	//go:embed config_schema.cue
//	var schema string
//
//	values, err := cueutil.DecodeMap(schema, data, "#Config", cueutil.WithFilename(path))
package cueutil
