// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apikcloud/oops/internal/config"
	"github.com/apikcloud/oops/internal/issue"
	"github.com/apikcloud/oops/internal/reconcile"
	"github.com/apikcloud/oops/internal/scan"
	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/internal/tui"
	"github.com/apikcloud/oops/internal/vcs"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and reaches
	// configuration, the repository and the prompts through it.
	App struct {
		Config         ConfigProvider
		OpenRepository RepositoryOpener
		NewDecider     DeciderFactory
		stdout         io.Writer
		stderr         io.Writer
		flags          globalFlags
		// removeAll deletes directory trees outside version control.
		removeAll func(path string) error
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config         ConfigProvider
		OpenRepository RepositoryOpener
		NewDecider     DeciderFactory
		Stdout         io.Writer
		Stderr         io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// RepositoryOpener finds the repository enclosing dir.
	RepositoryOpener func(dir string) (vcs.Backend, error)

	// DeciderFactory returns the interactive reviewer used when a run asks
	// before applying. It is called once per run.
	DeciderFactory func(cfg tui.Config) reconcile.Decider

	// session is the per-invocation state shared by repository commands.
	session struct {
		cfg     *config.Config
		backend vcs.Backend
		logger  *log.Logger
		scanner *scan.Scanner
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.OpenRepository == nil {
		deps.OpenRepository = openGit
	}
	if deps.NewDecider == nil {
		deps.NewDecider = func(cfg tui.Config) reconcile.Decider { return tui.NewPrompter(cfg) }
	}

	return &App{
		Config:         deps.Config,
		OpenRepository: deps.OpenRepository,
		NewDecider:     deps.NewDecider,
		stdout:         deps.Stdout,
		stderr:         deps.Stderr,
		removeAll:      os.RemoveAll,
	}, nil
}

func openGit(dir string) (vcs.Backend, error) {
	g, err := vcs.Open(dir)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// loadConfig loads configuration for a repository rooted at repoRoot, which
// may be empty outside a repository.
func (a *App) loadConfig(ctx context.Context, repoRoot string) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configFile,
		RepoRoot:       repoRoot,
	})
	if err != nil {
		id := issue.ConfigLoadFailedId
		if ae, ok := issue.Lookup(err); ok && ae.Issue != 0 {
			id = ae.Issue
		}
		return nil, newServiceError(err, id, "")
	}
	return cfg, nil
}

// openSession locates the repository, loads its configuration and builds
// the logger and scanner every repository command needs.
func (a *App) openSession(ctx context.Context) (*session, error) {
	dir := a.repoDir()
	backend, err := a.OpenRepository(dir)
	if err != nil {
		if errors.Is(err, vcs.ErrNotRepository) {
			wrapped := issue.NewErrorContext().
				WithOperation("open repository").
				WithResource(dir).
				WithSuggestion("Run oops inside a git work tree, or point --repo at one").
				WithIssue(issue.NotARepositoryId).
				Wrap(err).
				BuildError()
			return nil, newServiceError(wrapped, issue.NotARepositoryId, "")
		}
		return nil, err
	}

	cfg, err := a.loadConfig(ctx, backend.Root())
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		backend: backend,
		logger:  a.newLogger(cfg),
		scanner: scan.New(scan.Options{
			SkipDirs:      cfg.Scan.SkipDirs,
			ManifestNames: cfg.Scan.ManifestNames,
		}),
	}, nil
}

// repoDir is where the repository is searched from.
func (a *App) repoDir() string {
	if a.flags.repo == "" {
		return "."
	}
	return a.flags.repo
}

// newLogger builds the logger injected into the executor and handlers.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	level := log.InfoLevel
	if a.verbose(cfg) {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: "oops",
		Level:  level,
	})
}

// verbose reports whether the flag or the configuration asks for details.
func (a *App) verbose(cfg *config.Config) bool {
	return a.flags.verbose || (cfg != nil && cfg.UI.Verbose)
}

// registry loads the declaration file. ok is false when the repository has
// none, which callers report as "nothing to do".
func (s *session) registry(ctx context.Context) (reg *submodule.Registry, ok bool, err error) {
	reg, err = submodule.Load(ctx, s.backend)
	if errors.Is(err, submodule.ErrMissingDeclarationFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", vcs.ModulesFile, err)
	}
	return reg, true, nil
}

// symlinks lists every symlink of the work tree.
func (s *session) symlinks() ([]scan.Symlink, error) {
	return s.scanner.Symlinks(s.backend.Root(), false)
}

// requireClean refuses to go on when the work tree has local changes that
// a commit would pick up.
func (s *session) requireClean(ctx context.Context) error {
	clean, err := s.backend.IsClean(ctx)
	if err != nil {
		return err
	}
	if clean {
		return nil
	}
	err = issue.NewErrorContext().
		WithOperation("commit changes").
		WithResource(s.backend.Root()).
		WithSuggestion("Commit or stash your changes, or pass --no-commit").
		WithIssue(issue.DirtyWorktreeId).
		Wrap(errDirtyWorktree).
		BuildError()
	return newServiceError(err, issue.DirtyWorktreeId, "")
}

// commit records the staged changes with title and body. Nothing is
// committed when the index matches HEAD.
func (s *session) commit(ctx context.Context, title, body string) error {
	staged, err := s.backend.HasStagedChanges(ctx)
	if err != nil {
		return err
	}
	if !staged {
		s.logger.Info("nothing staged, no commit created")
		return nil
	}
	if err := s.backend.Commit(ctx, commitMessage(title, body), true); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("committed", "title", title)
	return nil
}
