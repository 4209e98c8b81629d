// SPDX-License-Identifier: MPL-2.0

// Package project checks the conventional files of an Odoo project
// repository and maintains its pre-commit exclusion list.
package project

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// OdooVersionFile holds the targeted Odoo series on its first line.
	OdooVersionFile = "odoo_version.txt"
	// DefaultExclusionsFile is read by pre-commit hooks to skip vendored addons.
	DefaultExclusionsFile = ".pre-commit-exclusions"
)

var (
	// DefaultMandatoryFiles must exist at the repository root.
	DefaultMandatoryFiles = []string{"odoo_version.txt", "packages.txt", "requirements.txt"}
	// DefaultRecommendedFiles should exist at the repository root.
	DefaultRecommendedFiles = []string{".gitignore", "CHANGELOG.md", "CODEOWNERS", "README.md"}

	// ErrNoOdooVersion is returned when odoo_version.txt has no usable line.
	ErrNoOdooVersion = errors.New("no odoo version declared")
)

// Report lists missing conventional files, sorted.
type Report struct {
	MissingMandatory   []string
	MissingRecommended []string
}

// OK reports whether every mandatory file is present.
func (r Report) OK() bool { return len(r.MissingMandatory) == 0 }

// Check looks for mandatory and recommended files directly under root.
func Check(root string, mandatory, recommended []string) (Report, error) {
	var r Report
	var err error
	if r.MissingMandatory, err = missing(root, mandatory); err != nil {
		return r, err
	}
	if r.MissingRecommended, err = missing(root, recommended); err != nil {
		return r, err
	}
	return r, nil
}

func missing(root string, names []string) ([]string, error) {
	var out []string
	for _, name := range names {
		_, err := os.Stat(filepath.Join(root, name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			out = append(out, name)
		case err != nil:
			return nil, err
		}
	}
	slices.Sort(out)
	return out, nil
}

// ReadList returns the non-empty, non-comment lines of a text file, sorted.
func ReadList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	slices.Sort(lines)
	return lines, nil
}

// OdooVersion returns the version declared in root/odoo_version.txt.
func OdooVersion(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, OdooVersionFile))
	if err != nil {
		return "", err
	}
	for line := range strings.Lines(string(data)) {
		if v := strings.TrimSpace(line); v != "" && !strings.HasPrefix(v, "#") {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", OdooVersionFile, ErrNoOdooVersion)
}

// ExclusionPattern joins addon names into the alternation pre-commit
// expects, e.g. "sale_x/|web_y/".
func ExclusionPattern(names []string) string {
	entries := make([]string, 0, len(names))
	for _, n := range names {
		entries = append(entries, strings.TrimSuffix(n, "/")+"/")
	}
	slices.Sort(entries)
	return strings.Join(slices.Compact(entries), "|")
}

// WriteExclusions writes the exclusion pattern for names to root/file and
// reports whether the content changed.
func WriteExclusions(root, file string, names []string) (bool, error) {
	if file == "" {
		file = DefaultExclusionsFile
	}
	path := filepath.Join(root, file)
	content := []byte(ExclusionPattern(names) + "\n")

	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, content) {
		return false, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
