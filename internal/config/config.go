// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apikcloud/oops/internal/issue"
	"github.com/apikcloud/oops/internal/layout"
	"github.com/apikcloud/oops/internal/manifest"
	"github.com/apikcloud/oops/internal/project"
	"github.com/apikcloud/oops/internal/scan"
	"github.com/apikcloud/oops/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "oops"
	// ConfigFileName is the name of the user config file.
	ConfigFileName = "config.cue"
	// RepoConfigFileName is the repository-local config file.
	RepoConfigFileName = ".oops.cue"
	// EnvPrefix prefixes environment overrides, e.g. OOPS_SUBMODULES_BASE_DIR.
	EnvPrefix = "OOPS"
)

//go:embed config_schema.cue
var configSchema string

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Submodules: SubmodulesConfig{
			BaseDir:                layout.DefaultBaseDir,
			LegacyBaseDirs:         []string{"third-party"},
			ForceScheme:            SchemeKeep,
			DeprecatedRepositories: []Deprecation{},
		},
		Scan: ScanConfig{
			ManifestNames: append([]string(nil), manifest.DefaultNames...),
			SkipDirs:      append([]string(nil), scan.DefaultSkipDirs...),
		},
		Project: ProjectConfig{
			MandatoryFiles:   append([]string(nil), project.DefaultMandatoryFiles...),
			RecommendedFiles: append([]string(nil), project.DefaultRecommendedFiles...),
			ExclusionsFile:   project.DefaultExclusionsFile,
		},
		UI: UIConfig{Interactive: InteractiveAuto},
	}
}

// ConfigDir returns the per-user oops configuration directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// UserConfigPath returns the path of the per-user config file.
func UserConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("submodules.base_dir", d.Submodules.BaseDir)
	v.SetDefault("submodules.legacy_base_dirs", d.Submodules.LegacyBaseDirs)
	v.SetDefault("submodules.force_scheme", string(d.Submodules.ForceScheme))
	v.SetDefault("submodules.default_branch", d.Submodules.DefaultBranch)
	v.SetDefault("submodules.deprecated_repositories", []map[string]any{})
	v.SetDefault("scan.manifest_names", d.Scan.ManifestNames)
	v.SetDefault("scan.skip_dirs", d.Scan.SkipDirs)
	v.SetDefault("project.mandatory_files", d.Project.MandatoryFiles)
	v.SetDefault("project.recommended_files", d.Project.RecommendedFiles)
	v.SetDefault("project.exclusions_file", d.Project.ExclusionsFile)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.interactive", string(d.UI.Interactive))
}

// loadWithOptions merges defaults, config files and the environment.
// An explicit ConfigFilePath is used alone and must exist. Otherwise the
// user file and then the repository file are merged when present.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var sources []string
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'oops config init' to create a default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %w", os.ErrNotExist)).
				BuildError()
		}
		sources = append(sources, opts.ConfigFilePath)
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			d, err := ConfigDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		for _, p := range []string{filepath.Join(dir, ConfigFileName), repoConfigPath(opts.RepoRoot)} {
			if p != "" && fileExists(p) {
				sources = append(sources, p)
			}
		}
	}

	for _, p := range sources {
		if err := loadCUEIntoViper(v, p); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(p).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare it with the output of 'oops config show --format cue'").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Sources = sources

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Directories must be relative to the repository root").
			WithSuggestion("Check OOPS_* environment variables, they override config files").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, nil
}

func repoConfigPath(root string) string {
	if root == "" {
		return ""
	}
	return filepath.Join(root, RepoConfigFileName)
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	values, err := cueutil.DecodeMap(configSchema, data, "#Config", cueutil.WithFilename(path))
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path unless a file is
// already there and force is unset. It reports whether the file was written.
func WriteDefault(path string, force bool) (bool, error) {
	if !force && fileExists(path) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE renders cfg as a config file accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// oops configuration\n\n")

	sb.WriteString("submodules: {\n")
	fmt.Fprintf(&sb, "\tbase_dir: %q\n", cfg.Submodules.BaseDir)
	fmt.Fprintf(&sb, "\tlegacy_base_dirs: %s\n", cueList(cfg.Submodules.LegacyBaseDirs))
	fmt.Fprintf(&sb, "\tforce_scheme: %q\n", cfg.Submodules.ForceScheme)
	fmt.Fprintf(&sb, "\tdefault_branch: %q\n", cfg.Submodules.DefaultBranch)
	if len(cfg.Submodules.DeprecatedRepositories) == 0 {
		sb.WriteString("\tdeprecated_repositories: []\n")
	} else {
		sb.WriteString("\tdeprecated_repositories: [\n")
		for _, d := range cfg.Submodules.DeprecatedRepositories {
			fmt.Fprintf(&sb, "\t\t{url: %q, replacement: %q},\n", d.URL, d.Replacement)
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nscan: {\n")
	fmt.Fprintf(&sb, "\tmanifest_names: %s\n", cueList(cfg.Scan.ManifestNames))
	fmt.Fprintf(&sb, "\tskip_dirs: %s\n", cueList(cfg.Scan.SkipDirs))
	sb.WriteString("}\n")

	sb.WriteString("\nproject: {\n")
	fmt.Fprintf(&sb, "\tmandatory_files: %s\n", cueList(cfg.Project.MandatoryFiles))
	fmt.Fprintf(&sb, "\trecommended_files: %s\n", cueList(cfg.Project.RecommendedFiles))
	fmt.Fprintf(&sb, "\texclusions_file: %q\n", cfg.Project.ExclusionsFile)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tinteractive: %q\n", cfg.UI.Interactive)
	sb.WriteString("}\n")
	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
