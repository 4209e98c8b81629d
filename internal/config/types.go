// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/apikcloud/oops/pkg/repourl"
)

const (
	// SchemeKeep leaves declared URLs in whatever scheme they use.
	SchemeKeep URLScheme = ""
	// SchemeHTTPS rewrites declared URLs to https://host/owner/repo.git.
	SchemeHTTPS URLScheme = "https"
	// SchemeSSH rewrites declared URLs to git@host:owner/repo.git.
	SchemeSSH URLScheme = "ssh"

	// InteractiveAuto prompts only when stdin and stdout are terminals.
	InteractiveAuto InteractiveMode = "auto"
	// InteractiveAlways prompts even without a terminal, in accessible mode.
	InteractiveAlways InteractiveMode = "always"
	// InteractiveNever accepts nothing without --force.
	InteractiveNever InteractiveMode = "never"
)

var (
	// ErrInvalidURLScheme is returned when a URLScheme value is not recognized.
	ErrInvalidURLScheme = errors.New("invalid url scheme")
	// ErrInvalidInteractiveMode is returned when an InteractiveMode value is not recognized.
	ErrInvalidInteractiveMode = errors.New("invalid interactive mode")
	// ErrInvalidDirectory is returned for directory settings that are empty,
	// absolute or escape the repository.
	ErrInvalidDirectory = errors.New("invalid directory")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// URLScheme selects the scheme declared submodule URLs are rewritten to.
	URLScheme string

	// InvalidURLSchemeError is returned when a URLScheme value is not recognized.
	InvalidURLSchemeError struct {
		Value URLScheme
	}

	// InteractiveMode controls when accept/reject prompts are shown.
	InteractiveMode string

	// InvalidInteractiveModeError is returned when an InteractiveMode value is not recognized.
	InvalidInteractiveModeError struct {
		Value InteractiveMode
	}

	// InvalidDirectoryError names the offending setting and value.
	InvalidDirectoryError struct {
		Key   string
		Value string
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Submodules SubmodulesConfig `json:"submodules" yaml:"submodules" toml:"submodules" mapstructure:"submodules"`
		Scan       ScanConfig       `json:"scan" yaml:"scan" toml:"scan" mapstructure:"scan"`
		Project    ProjectConfig    `json:"project" yaml:"project" toml:"project" mapstructure:"project"`
		UI         UIConfig         `json:"ui" yaml:"ui" toml:"ui" mapstructure:"ui"`

		// Sources lists the files merged into this configuration, lowest
		// precedence first.
		Sources []string `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
	}

	// SubmodulesConfig drives the submodule layout and reconciliation.
	SubmodulesConfig struct {
		// BaseDir is the repository-relative directory submodules belong in.
		BaseDir string `json:"base_dir" yaml:"base_dir" toml:"base_dir" mapstructure:"base_dir"`
		// LegacyBaseDirs are removed once empty after paths were rewritten.
		LegacyBaseDirs []string `json:"legacy_base_dirs" yaml:"legacy_base_dirs" toml:"legacy_base_dirs" mapstructure:"legacy_base_dirs"`
		// ForceScheme is applied by `submodule fix`.
		ForceScheme URLScheme `json:"force_scheme" yaml:"force_scheme" toml:"force_scheme" mapstructure:"force_scheme"`
		// DefaultBranch is written for submodules that track no branch.
		// Empty disables the fix_branch pass.
		DefaultBranch string `json:"default_branch" yaml:"default_branch" toml:"default_branch" mapstructure:"default_branch"`
		// DeprecatedRepositories lists repositories that moved.
		DeprecatedRepositories []Deprecation `json:"deprecated_repositories" yaml:"deprecated_repositories" toml:"deprecated_repositories" mapstructure:"deprecated_repositories"`
	}

	// Deprecation points a repository URL at its replacement. Both sides are
	// compared in canonical form, so any spelling of the URL matches.
	Deprecation struct {
		URL         string `json:"url" yaml:"url" toml:"url" mapstructure:"url"`
		Replacement string `json:"replacement" yaml:"replacement" toml:"replacement" mapstructure:"replacement"`
	}

	// ScanConfig configures filesystem walks.
	ScanConfig struct {
		ManifestNames []string `json:"manifest_names" yaml:"manifest_names" toml:"manifest_names" mapstructure:"manifest_names"`
		SkipDirs      []string `json:"skip_dirs" yaml:"skip_dirs" toml:"skip_dirs" mapstructure:"skip_dirs"`
	}

	// ProjectConfig lists the files `project check` looks for.
	ProjectConfig struct {
		MandatoryFiles   []string `json:"mandatory_files" yaml:"mandatory_files" toml:"mandatory_files" mapstructure:"mandatory_files"`
		RecommendedFiles []string `json:"recommended_files" yaml:"recommended_files" toml:"recommended_files" mapstructure:"recommended_files"`
		ExclusionsFile   string   `json:"exclusions_file" yaml:"exclusions_file" toml:"exclusions_file" mapstructure:"exclusions_file"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		Verbose     bool            `json:"verbose" yaml:"verbose" toml:"verbose" mapstructure:"verbose"`
		Interactive InteractiveMode `json:"interactive" yaml:"interactive" toml:"interactive" mapstructure:"interactive"`
	}
)

// String returns the string representation of the URLScheme.
func (s URLScheme) String() string { return string(s) }

// IsValid returns whether the URLScheme is one of the defined schemes.
// The zero value is valid and means "keep".
func (s URLScheme) IsValid() (bool, []error) {
	switch s {
	case SchemeKeep, SchemeHTTPS, SchemeSSH:
		return true, nil
	default:
		return false, []error{&InvalidURLSchemeError{Value: s}}
	}
}

// Error implements the error interface.
func (e *InvalidURLSchemeError) Error() string {
	return fmt.Sprintf("invalid url scheme %q (valid: https, ssh)", e.Value)
}

// Unwrap returns ErrInvalidURLScheme for errors.Is() compatibility.
func (e *InvalidURLSchemeError) Unwrap() error { return ErrInvalidURLScheme }

// String returns the string representation of the InteractiveMode.
func (m InteractiveMode) String() string { return string(m) }

// IsValid returns whether the InteractiveMode is one of the defined modes.
func (m InteractiveMode) IsValid() (bool, []error) {
	switch m {
	case InteractiveAuto, InteractiveAlways, InteractiveNever:
		return true, nil
	default:
		return false, []error{&InvalidInteractiveModeError{Value: m}}
	}
}

// Error implements the error interface.
func (e *InvalidInteractiveModeError) Error() string {
	return fmt.Sprintf("invalid interactive mode %q (valid: auto, always, never)", e.Value)
}

// Unwrap returns ErrInvalidInteractiveMode for errors.Is() compatibility.
func (e *InvalidInteractiveModeError) Unwrap() error { return ErrInvalidInteractiveMode }

// Error implements the error interface.
func (e *InvalidDirectoryError) Error() string {
	return fmt.Sprintf("%s: %q must be a relative path inside the repository", e.Key, e.Value)
}

// Unwrap returns ErrInvalidDirectory for errors.Is() compatibility.
func (e *InvalidDirectoryError) Unwrap() error { return ErrInvalidDirectory }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and the field errors to errors.Is().
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

func validDir(key, dir string) error {
	clean := path.Clean(dir)
	if strings.TrimSpace(dir) == "" || path.IsAbs(dir) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return &InvalidDirectoryError{Key: key, Value: dir}
	}
	return nil
}

// IsValid checks the constraints the schema cannot express once environment
// overrides were applied.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if err := validDir("submodules.base_dir", c.Submodules.BaseDir); err != nil {
		errs = append(errs, err)
	}
	for _, dir := range c.Submodules.LegacyBaseDirs {
		if err := validDir("submodules.legacy_base_dirs", dir); err != nil {
			errs = append(errs, err)
		}
	}
	if slices.Contains(c.Submodules.LegacyBaseDirs, path.Clean(c.Submodules.BaseDir)) {
		errs = append(errs, fmt.Errorf("submodules.legacy_base_dirs: contains the base directory %q", c.Submodules.BaseDir))
	}
	for i, d := range c.Submodules.DeprecatedRepositories {
		if _, err := repourl.Parse(d.URL); err != nil {
			errs = append(errs, fmt.Errorf("submodules.deprecated_repositories[%d].url: %w", i, err))
		}
		if _, err := repourl.Parse(d.Replacement); err != nil {
			errs = append(errs, fmt.Errorf("submodules.deprecated_repositories[%d].replacement: %w", i, err))
		}
	}
	if valid, fieldErrs := c.Submodules.ForceScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.Interactive.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(c.Scan.ManifestNames) == 0 {
		errs = append(errs, errors.New("scan.manifest_names: at least one name is required"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Replacement returns the repository that supersedes url, if any.
func (c SubmodulesConfig) Replacement(url string) (string, bool) {
	for _, d := range c.DeprecatedRepositories {
		if repourl.Equivalent(d.URL, url) {
			return d.Replacement, true
		}
	}
	return "", false
}

// Validate returns the IsValid errors joined, or nil.
func (c Config) Validate() error {
	if ok, errs := c.IsValid(); !ok {
		return errors.Join(errs...)
	}
	return nil
}
