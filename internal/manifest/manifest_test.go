// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

const sampleManifest = `# Copyright 2024 Apik
# License AGPL-3.0 or later (https://www.gnu.org/licenses/agpl).
{
    "name": "Web Responsive",
    'summary': "Responsive web client, "
               "community-supported",
    "version": "18.0.1.2.0",
    "license": "AGPL-3.0",
    "website": "https://github.com/OCA/web",
    "depends": ["web", 'mail',],
    "data": (
        "views/assets.xml",  # trailing comment
    ),
    "installable": True,
    "application": False,
    "auto_install": None,
    "sequence": 10,
    "price": 1.5,
    "description": """
Multi-line
description with "quotes"
""",
    "pattern": r"\d+",
}
`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := m.Name(); got != "Web Responsive" {
		t.Errorf("Name() = %q, want %q", got, "Web Responsive")
	}
	if got := m.Version(); got != "18.0.1.2.0" {
		t.Errorf("Version() = %q", got)
	}
	if got := m.String("summary"); got != "Responsive web client, community-supported" {
		t.Errorf("summary = %q, want concatenated string", got)
	}
	if got := m.Depends(); !slices.Equal(got, []string{"web", "mail"}) {
		t.Errorf("Depends() = %v", got)
	}
	if got := m.Strings("data"); !slices.Equal(got, []string{"views/assets.xml"}) {
		t.Errorf("data = %v", got)
	}
	if !m.Installable() {
		t.Error("Installable() = false, want true")
	}
	if m.Bool("application", true) {
		t.Error("application = true, want false")
	}
	if v, ok := m["auto_install"]; !ok || v != nil {
		t.Errorf("auto_install = %v (present %v), want nil", v, ok)
	}
	if m["sequence"] != int64(10) {
		t.Errorf("sequence = %#v, want int64(10)", m["sequence"])
	}
	if m["price"] != 1.5 {
		t.Errorf("price = %#v, want 1.5", m["price"])
	}
	if got := m.String("description"); got != "\nMulti-line\ndescription with \"quotes\"\n" {
		t.Errorf("description = %q", got)
	}
	if got := m.String("pattern"); got != `\d+` {
		t.Errorf("raw string = %q, want %q", got, `\d+`)
	}
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(`{'name': 'Minimal'}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !m.Installable() {
		t.Error("Installable() should default to true")
	}
	if len(m.Depends()) != 0 {
		t.Errorf("Depends() = %v, want empty", m.Depends())
	}
	if m.Version() != "" {
		t.Errorf("Version() = %q, want empty", m.Version())
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{name: "not a dict", src: `["a"]`},
		{name: "expression", src: `{"name": get_name()}`},
		{name: "unterminated", src: `{"name": "oops`},
		{name: "missing colon", src: `{"name" "x"}`},
		{name: "non string key", src: `{1: "x"}`},
		{name: "trailing code", src: `{"name": "x"} print("hi")`},
		{name: "missing comma", src: `{"a": 1 "b": 2}`},
		{name: "empty", src: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.src))
			if !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidManifest", tt.src, err)
			}
		})
	}
}

func TestRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "__openerp__.py"), []byte(`{"name": "Legacy"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m, name, err := Read(dir, DefaultNames)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if name != "__openerp__.py" {
		t.Errorf("Read() name = %q, want __openerp__.py", name)
	}
	if m.Name() != "Legacy" {
		t.Errorf("Name() = %q", m.Name())
	}

	// the first matching name wins
	if err := os.WriteFile(filepath.Join(dir, "__manifest__.py"), []byte(`{"name": "Current"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, name, err = Read(dir, DefaultNames)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if name != "__manifest__.py" || m.Name() != "Current" {
		t.Errorf("Read() = %q/%q, want __manifest__.py/Current", name, m.Name())
	}
}

func TestReadNotFound(t *testing.T) {
	t.Parallel()

	_, _, err := Read(t.TempDir(), DefaultNames)
	if !errors.Is(err, ErrManifestNotFound) {
		t.Errorf("Read() error = %v, want ErrManifestNotFound", err)
	}
}

func TestReadFileInvalidCarriesPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "__manifest__.py")
	if err := os.WriteFile(path, []byte(`{"name": oops}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFile(path)
	var invalid *InvalidManifestError
	if !errors.As(err, &invalid) {
		t.Fatalf("ReadFile() error = %v, want *InvalidManifestError", err)
	}
	if invalid.Path != path {
		t.Errorf("InvalidManifestError.Path = %q, want %q", invalid.Path, path)
	}
}
