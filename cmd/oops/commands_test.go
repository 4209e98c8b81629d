// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/apikcloud/oops/internal/project"
	"github.com/apikcloud/oops/internal/testutil"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/google/go-cmp/cmp"
)

func TestRunListAddons(t *testing.T) {
	t.Parallel()

	h := legacyHarness(t)
	testutil.MustWriteFile(t, h.root, "local_addon/__manifest__.py", testutil.Manifest("local_addon"))

	err := h.app.runListAddons(context.Background(), listAddonsRequest{format: formatJSON})
	if err != nil {
		t.Fatalf("runListAddons() error = %v", err)
	}
	var got []addonRow
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, h.stdout)
	}
	want := []addonRow{
		{Name: "local_addon", Path: "local_addon", Version: "18.0.1.0.0"},
		{Name: "name1_models", Path: "name1_models", Version: "18.0.1.0.0", Symlink: true, Submodule: "old/name1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("addons mismatch (-want +got):\n%s", diff)
	}
}

func TestRunListAddonsSymlinksOnly(t *testing.T) {
	t.Parallel()

	h := legacyHarness(t)
	testutil.MustWriteFile(t, h.root, "local_addon/__manifest__.py", testutil.Manifest("local_addon"))

	err := h.app.runListAddons(context.Background(), listAddonsRequest{symlinksOnly: true, format: formatCSV})
	if err != nil {
		t.Fatalf("runListAddons() error = %v", err)
	}
	want := "Name,Version,Path,Symlink,Submodule\nname1_models,18.0.1.0.0,name1_models,yes,old/name1\n"
	if diff := cmp.Diff(want, h.stdout.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestRunDiffAddonsWithoutHistory(t *testing.T) {
	t.Parallel()

	h := legacyHarness(t)
	err := h.app.runDiffAddons(context.Background(), false, 1)
	if code := exitCodeOf(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
}

func TestRunMaterialize(t *testing.T) {
	t.Parallel()

	h := legacyHarness(t)
	if err := h.app.runMaterialize(context.Background(), []string{"name1_models"}, mutationFlags{}); err != nil {
		t.Fatalf("runMaterialize() error = %v\nstderr: %s", err, h.stderr)
	}
	if testutil.IsSymlink(h.root, "name1_models") {
		t.Error("name1_models is still a symlink")
	}
	if !testutil.Exists(h.root, "name1_models/__manifest__.py") {
		t.Error("manifest was not copied")
	}
	if diff := cmp.Diff([]string{"chore: materialize addon(s) name1_models"}, h.fake.Commits); diff != "" {
		t.Errorf("commits mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMaterializeOutsideRepository(t *testing.T) {
	t.Parallel()

	h := legacyHarness(t)
	err := h.app.runMaterialize(context.Background(), []string{filepath.Join(t.TempDir(), "elsewhere")}, mutationFlags{noCommit: true})
	if code := exitCodeOf(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
	if h.fake.Called("stage") {
		t.Error("nothing should have been staged")
	}
}

func TestRunProjectCheck(t *testing.T) {
	t.Parallel()

	t.Run("missing mandatory files", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "")
		testutil.MustWriteFile(t, h.root, project.OdooVersionFile, "18.0\n")

		err := h.app.runProjectCheck(context.Background())
		if code := exitCodeOf(t, err); code != types.ExitFailure {
			t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
		}
		out := h.stdout.String()
		for _, want := range []string{"Odoo version: 18.0", "packages.txt", "requirements.txt", "README.md"} {
			if !strings.Contains(out, want) {
				t.Errorf("stdout lacks %q:\n%s", want, out)
			}
		}
	})

	t.Run("complete project", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "")
		for _, name := range slices.Concat(project.DefaultMandatoryFiles, project.DefaultRecommendedFiles) {
			testutil.MustWriteFile(t, h.root, name, "18.0\n")
		}
		if err := h.app.runProjectCheck(context.Background()); err != nil {
			t.Fatalf("runProjectCheck() error = %v", err)
		}
		if !strings.Contains(h.stdout.String(), "All project files are present.") {
			t.Errorf("stdout = %q", h.stdout)
		}
	})
}

func TestRunProjectExclude(t *testing.T) {
	t.Parallel()

	h := legacyHarness(t)
	if err := h.app.runProjectExclude(context.Background(), false); err != nil {
		t.Fatalf("runProjectExclude() error = %v", err)
	}
	if got := testutil.MustReadFile(t, h.root, project.DefaultExclusionsFile); got != "name1_models/\n" {
		t.Errorf("exclusions = %q", got)
	}
	if diff := cmp.Diff([]string{msgPreCommitExclude}, h.fake.Commits); diff != "" {
		t.Errorf("commits mismatch (-want +got):\n%s", diff)
	}

	h.stdout.Reset()
	if err := h.app.runProjectExclude(context.Background(), false); err != nil {
		t.Fatalf("second runProjectExclude() error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "is up to date") {
		t.Errorf("stdout = %q", h.stdout)
	}
	if len(h.fake.Commits) != 1 {
		t.Errorf("got %d commits, want 1", len(h.fake.Commits))
	}
}

func TestShowConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format outputFormat
		want   string
	}{
		{format: formatCUE, want: `base_dir: ".third-party"`},
		{format: formatYAML, want: "base_dir: .third-party"},
		{format: formatJSON, want: `"base_dir": ".third-party"`},
		{format: formatTOML, want: "[config.submodules]"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, "")
			if err := h.app.showConfig(context.Background(), tt.format); err != nil {
				t.Fatalf("showConfig() error = %v", err)
			}
			if !strings.Contains(h.stdout.String(), tt.want) {
				t.Errorf("output lacks %q:\n%s", tt.want, h.stdout)
			}
		})
	}
}

func TestInitConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	path := filepath.Join(t.TempDir(), "oops", "config.cue")
	h.app.flags.configFile = path

	if err := h.app.initConfig(false); err != nil {
		t.Fatalf("initConfig() error = %v", err)
	}
	content := testutil.MustReadFile(t, filepath.Dir(path), "config.cue")
	if !strings.Contains(content, "submodules: {") {
		t.Errorf("config file = %q", content)
	}

	h.stdout.Reset()
	if err := h.app.initConfig(false); err != nil {
		t.Fatalf("second initConfig() error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "already exists") {
		t.Errorf("stdout = %q", h.stdout)
	}
}
