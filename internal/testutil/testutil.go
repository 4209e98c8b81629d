// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MustMkdirAll creates root/rel along with any necessary parents and returns
// the joined path.
func MustMkdirAll(t testing.TB, root, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", p, err)
	}
	return p
}

// MustWriteFile writes content to root/rel, creating parent directories.
func MustWriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", p, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

// MustSymlink creates a symlink at root/rel whose raw target is target.
func MustSymlink(t testing.TB, root, rel, target string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", p, err)
	}
	if err := os.Symlink(target, p); err != nil {
		t.Fatalf("failed to symlink %s -> %s: %v", p, target, err)
	}
	return p
}

// MustReadlink returns the raw target of the symlink at root/rel.
func MustReadlink(t testing.TB, root, rel string) string {
	t.Helper()
	target, err := os.Readlink(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read symlink %s: %v", rel, err)
	}
	return target
}

// MustReadFile returns the content of root/rel.
func MustReadFile(t testing.TB, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

// Exists reports whether root/rel exists without following a final symlink.
func Exists(root, rel string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

// IsSymlink reports whether root/rel is a symbolic link.
func IsSymlink(root, rel string) bool {
	info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// Manifest returns a minimal addon manifest for name.
func Manifest(name string) string {
	return "{\n    \"name\": \"" + name + "\",\n    \"version\": \"18.0.1.0.0\",\n    \"installable\": True,\n}\n"
}
