// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/apikcloud/oops/internal/issue"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	// verbose enables debug logging and error chains.
	verbose bool
	// configFile replaces the user and repository config files.
	configFile string
	// repo is the directory the repository is searched from.
	repo string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oops",
		Short: "Keep vendored Odoo addon repositories in order",
		Long: TitleStyle.Render("oops") + SubtitleStyle.Render(" - Keep vendored Odoo addon repositories in order") + `

oops manages the third-party addon repositories an Odoo project vendors as
git submodules and exposes through symlinks. It moves submodules under one
base directory, names them after their owner/repo, prunes the ones nothing
links to anymore, and keeps .gitmodules consistent with the work tree.

` + SubtitleStyle.Render("Examples:") + `
  oops submodule check        Report non-conforming submodules
  oops submodule sync         Prune, move, fix branches and rename in one go
  oops addons list            List addons and the submodule they come from
  oops config show            Show the effective configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/oops/config.cue, then .oops.cue in the repository)")
	rootCmd.PersistentFlags().StringVarP(&app.flags.repo, "repo", "C", "", "run as if oops was started in this directory")

	rootCmd.AddCommand(newSubmoduleCommand(app))
	rootCmd.AddCommand(newAddonsCommand(app))
	rootCmd.AddCommand(newProjectCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting status.
// This is called by main.main().
func Execute() {
	os.Exit(Main())
}

// Main runs the CLI with production dependencies and returns the exit code.
func Main() int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return int(types.ExitFailure)
	}
	return run(context.Background(), app, os.Args[1:])
}

// run executes the command tree with args. It is shared by Main and tests.
func run(ctx context.Context, app *App, args []string) int {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	// fang overrides rootCmd.Version, so the version is passed explicitly.
	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	return exitCode(err)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	if ae, ok := issue.Lookup(err); ok {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
