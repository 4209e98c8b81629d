// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/apikcloud/oops/internal/config"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/spf13/cobra"
)

// formatCUE prints the configuration as a loadable config file.
const formatCUE outputFormat = "cue"

// newConfigCommand creates the `oops config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage oops configuration",
		Long: `Manage oops configuration.

Settings are merged in this order, later sources winning:
  - built-in defaults
  - the user file:
      Linux: ~/.config/oops/config.cue
      macOS: ~/Library/Application Support/oops/config.cue
      Windows: %APPDATA%\oops\config.cue
  - .oops.cue at the repository root
  - OOPS_* environment variables, e.g. OOPS_SUBMODULES_BASE_DIR

--config replaces both files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, formatCUE, formatJSON, formatYAML, formatTOML)
			if err != nil {
				return app.fail(types.ExitUsage, err)
			}
			return app.showConfig(cmd.Context(), f)
		},
	}
	showCmd.Flags().StringVar(&format, "format", string(formatCUE), "output format: cue, json, yaml or toml")
	cfgCmd.AddCommand(showCmd)

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default user configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig(force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfigPath()
		},
	})

	return cfgCmd
}

// showConfig prints the merged configuration. It works outside a
// repository, where only the user file applies.
func (a *App) showConfig(ctx context.Context, format outputFormat) error {
	root := ""
	if backend, err := a.OpenRepository(a.repoDir()); err == nil {
		root = backend.Root()
	}
	cfg, err := a.loadConfig(ctx, root)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}

	if format == formatCUE {
		for _, src := range cfg.Sources {
			fmt.Fprintf(a.stdout, "// source: %s\n", src)
		}
		fmt.Fprint(a.stdout, config.GenerateCUE(cfg))
		return nil
	}
	return writeListing(a.stdout, format, listing{Key: "config", Records: cfg})
}

func (a *App) initConfig(force bool) error {
	path := a.flags.configFile
	if path == "" {
		p, err := config.UserConfigPath()
		if err != nil {
			return a.fail(types.ExitFailure, err)
		}
		path = p
	}
	written, err := config.WriteDefault(path, force)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	if !written {
		fmt.Fprintf(a.stdout, "%s already exists, use --force to overwrite it.\n", CmdStyle.Render(path))
		return nil
	}
	fmt.Fprintf(a.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func (a *App) showConfigPath() error {
	path, err := config.UserConfigPath()
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	fmt.Fprintf(a.stdout, "User config file: %s\n", path)
	if backend, err := a.OpenRepository(a.repoDir()); err == nil {
		fmt.Fprintf(a.stdout, "Repository config file: %s/%s\n", backend.Root(), config.RepoConfigFileName)
	}
	return nil
}
