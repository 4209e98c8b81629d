// SPDX-License-Identifier: MPL-2.0

// Package manifest reads Odoo addon manifests. A manifest is a Python dict
// literal; only literal values are supported (no expressions or calls).
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// maxManifestSize bounds the bytes read from a manifest file.
const maxManifestSize = 1 << 20

var (
	// DefaultNames lists the recognized manifest filenames, newest first.
	DefaultNames = []string{"__manifest__.py", "__openerp__.py", "__terp__.py"}

	// ErrManifestNotFound is returned when no recognized manifest exists in a directory.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrInvalidManifest is the sentinel error wrapped by InvalidManifestError.
	ErrInvalidManifest = errors.New("invalid manifest")
)

type (
	// Manifest is the decoded key/value content of an addon manifest.
	Manifest map[string]any

	// InvalidManifestError is returned when a manifest file is not a literal dict.
	InvalidManifestError struct {
		Path   string
		Offset int
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid manifest %s at offset %d: %s", e.Path, e.Offset, e.Reason)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *InvalidManifestError) Unwrap() error { return ErrInvalidManifest }

// Find returns the first manifest filename from names present in dir, or
// ErrManifestNotFound.
func Find(dir string, names []string) (string, error) {
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && info.Mode().IsRegular() {
			return name, nil
		}
	}
	return "", ErrManifestNotFound
}

// Read locates and decodes the manifest of the addon in dir. It returns the
// filename that matched alongside the decoded content.
func Read(dir string, names []string) (Manifest, string, error) {
	name, err := Find(dir, names)
	if err != nil {
		return nil, "", err
	}
	m, err := ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, name, err
	}
	return m, name, nil
}

// ReadFile decodes the manifest stored at path.
func ReadFile(path string) (Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxManifestSize {
		return nil, &InvalidManifestError{Path: path, Reason: fmt.Sprintf("file too large (%d bytes)", info.Size())}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		var invalid *InvalidManifestError
		if errors.As(err, &invalid) {
			invalid.Path = path
		}
		return nil, err
	}
	return m, nil
}

// Parse decodes manifest source text.
func Parse(data []byte) (Manifest, error) {
	p := &parser{src: []rune(string(data))}
	p.skipSpace()
	if p.peek() != '{' {
		return nil, p.fail("expected a dict literal")
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.fail("unexpected content after manifest dict")
	}
	return Manifest(v.(map[string]any)), nil
}

// String returns the string value stored under key, or "".
func (m Manifest) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns the boolean stored under key, or fallback when absent.
func (m Manifest) Bool(key string, fallback bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return fallback
}

// Strings returns the string items of the list or tuple stored under key.
func (m Manifest) Strings(key string) []string {
	items, _ := m[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Name is the human readable addon name.
func (m Manifest) Name() string { return m.String("name") }

// Version is the addon version, e.g. "18.0.1.0.0".
func (m Manifest) Version() string { return m.String("version") }

// Installable defaults to true when the key is missing.
func (m Manifest) Installable() bool { return m.Bool("installable", true) }

// Depends lists the addon's declared dependencies.
func (m Manifest) Depends() []string { return m.Strings("depends") }
