// SPDX-License-Identifier: MPL-2.0

package scan

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/apikcloud/oops/internal/manifest"
	"github.com/apikcloud/oops/internal/testutil"
)

// newTree builds:
//
//	sale_custom/__manifest__.py
//	web_responsive -> .third-party/OCA/web/web_responsive
//	broken_link -> .third-party/OCA/gone/addon
//	.third-party/OCA/web/web_responsive/__manifest__.py
//	.third-party/OCA/web/web_legacy/__openerp__.py
//	setup/sale_custom/__manifest__.py   (skipped)
//	.git/hooks/__manifest__.py          (skipped)
func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.MustWriteFile(t, root, "sale_custom/__manifest__.py", testutil.Manifest("Sale Custom"))
	testutil.MustWriteFile(t, root, ".third-party/OCA/web/web_responsive/__manifest__.py", testutil.Manifest("Web Responsive"))
	testutil.MustWriteFile(t, root, ".third-party/OCA/web/web_legacy/__openerp__.py", testutil.Manifest("Web Legacy"))
	testutil.MustWriteFile(t, root, "setup/sale_custom/__manifest__.py", testutil.Manifest("Setup"))
	testutil.MustWriteFile(t, root, ".git/hooks/__manifest__.py", testutil.Manifest("Git"))
	testutil.MustSymlink(t, root, "web_responsive", ".third-party/OCA/web/web_responsive")
	testutil.MustSymlink(t, root, "broken_link", ".third-party/OCA/gone/addon")
	return root
}

func collect(t *testing.T, s *Scanner, root string) []Addon {
	t.Helper()
	var out []Addon
	for addon, err := range s.Addons(root) {
		if err != nil {
			t.Fatalf("Addons() error = %v", err)
		}
		out = append(out, addon)
	}
	return out
}

func relPaths(addons []Addon) []string {
	out := make([]string, 0, len(addons))
	for _, a := range addons {
		out = append(out, a.RelPath)
	}
	slices.Sort(out)
	return out
}

func TestAddonsShallow(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	addons := collect(t, New(Options{Shallow: true}), root)

	want := []string{"sale_custom", "web_responsive"}
	if got := relPaths(addons); !slices.Equal(got, want) {
		t.Fatalf("Addons(shallow) = %v, want %v", got, want)
	}

	for _, a := range addons {
		switch a.TechnicalName {
		case "web_responsive":
			if !a.IsSymlink {
				t.Error("web_responsive should be reported as a symlink")
			}
			if a.Manifest.Name() != "Web Responsive" {
				t.Errorf("web_responsive manifest name = %q", a.Manifest.Name())
			}
		case "sale_custom":
			if a.IsSymlink {
				t.Error("sale_custom should not be a symlink")
			}
			if a.Path != filepath.Join(root, "sale_custom") {
				t.Errorf("sale_custom path = %q", a.Path)
			}
		}
	}
}

func TestAddonsDeep(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	addons := collect(t, New(Options{}), root)

	want := []string{
		".third-party/OCA/web/web_legacy",
		".third-party/OCA/web/web_responsive",
		"sale_custom",
		"web_responsive",
	}
	if got := relPaths(addons); !slices.Equal(got, want) {
		t.Fatalf("Addons(deep) = %v, want %v", got, want)
	}

	for _, a := range addons {
		if a.TechnicalName == "web_legacy" && a.ManifestFile != "__openerp__.py" {
			t.Errorf("web_legacy manifest file = %q", a.ManifestFile)
		}
	}
}

func TestAddonsCustomSkipAndManifestNames(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	s := New(Options{SkipDirs: []string{".git", ".third-party"}, ManifestNames: []string{"__openerp__.py"}})

	// only the legacy manifest name is recognized and .third-party is skipped,
	// so the symlinked addon (which has __manifest__.py) is not an addon either
	if got := relPaths(collect(t, s, root)); len(got) != 0 {
		t.Errorf("Addons() = %v, want none", got)
	}

	s = New(Options{SkipDirs: []string{".git"}})
	got := relPaths(collect(t, s, root))
	if !slices.Contains(got, "setup/sale_custom") {
		t.Errorf("Addons() = %v, want setup/sale_custom when setup is not skipped", got)
	}
}

func TestAddonsRestartableAndStoppable(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	s := New(Options{})

	first := relPaths(collect(t, s, root))
	second := relPaths(collect(t, s, root))
	if !slices.Equal(first, second) {
		t.Errorf("second walk = %v, want %v", second, first)
	}

	n := 0
	for range s.Addons(root) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early break visited %d addons, want 1", n)
	}
}

func TestAddonsInvalidManifest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, root, "bad_addon/__manifest__.py", "{'name': compute()}")

	var sawErr bool
	for addon, err := range New(Options{}).Addons(root) {
		if addon.TechnicalName != "bad_addon" {
			continue
		}
		if !errors.Is(err, manifest.ErrInvalidManifest) {
			t.Errorf("error = %v, want ErrInvalidManifest", err)
		}
		sawErr = true
	}
	if !sawErr {
		t.Error("bad_addon was not yielded")
	}
}

func TestSymlinks(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	testutil.MustSymlink(t, root, "nested/dir/web_legacy", "../../.third-party/OCA/web/web_legacy")
	testutil.MustSymlink(t, root, ".git/ignored", "../sale_custom")

	links, err := New(Options{}).Symlinks(root, false)
	if err != nil {
		t.Fatalf("Symlinks() error = %v", err)
	}

	want := []Symlink{
		{Path: "broken_link", RawTarget: ".third-party/OCA/gone/addon", Target: ".third-party/OCA/gone/addon", Broken: true},
		{Path: "nested/dir/web_legacy", RawTarget: "../../.third-party/OCA/web/web_legacy", Target: ".third-party/OCA/web/web_legacy"},
		{Path: "web_responsive", RawTarget: ".third-party/OCA/web/web_responsive", Target: ".third-party/OCA/web/web_responsive"},
	}
	if !slices.Equal(links, want) {
		t.Errorf("Symlinks() = %+v\nwant %+v", links, want)
	}

	broken, err := New(Options{}).Symlinks(root, true)
	if err != nil {
		t.Fatalf("Symlinks(brokenOnly) error = %v", err)
	}
	if len(broken) != 1 || broken[0].Path != "broken_link" {
		t.Errorf("Symlinks(brokenOnly) = %+v, want only broken_link", broken)
	}
}

func TestResolveTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link, raw, want string
	}{
		{"a", "b/c", "b/c"},
		{"x/a", "../b", "b"},
		{"a", "../outside", ""},
		{"a", "/abs/path", ""},
		{"x/y/a", "./z", "x/y/z"},
	}
	for _, tt := range tests {
		if got := resolveTarget(tt.link, tt.raw); got != tt.want {
			t.Errorf("resolveTarget(%q, %q) = %q, want %q", tt.link, tt.raw, got, tt.want)
		}
	}
}

func TestIsDirEmpty(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	empty := testutil.MustMkdirAll(t, root, "empty")
	testutil.MustWriteFile(t, root, "full/file.txt", "x")

	if !IsDirEmpty(empty) {
		t.Error("IsDirEmpty(empty) = false")
	}
	if IsDirEmpty(filepath.Join(root, "full")) {
		t.Error("IsDirEmpty(full) = true")
	}
	if IsDirEmpty(filepath.Join(root, "missing")) {
		t.Error("IsDirEmpty(missing) = true, want false")
	}
}
