// SPDX-License-Identifier: MPL-2.0

package submodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apikcloud/oops/internal/layout"
	"github.com/apikcloud/oops/internal/vcs"

	"github.com/go-git/go-git/v5/plumbing/format/config"
)

const (
	keyPath   = "path"
	keyURL    = "url"
	keyBranch = "branch"
)

var (
	// ErrMissingDeclarationFile is returned by Load when the repository has
	// no .gitmodules. Callers treat it as "nothing to do".
	ErrMissingDeclarationFile = errors.New("no .gitmodules found")

	// ErrNotFound is returned when a submodule name is not declared.
	ErrNotFound = errors.New("submodule not declared")

	// ErrNameCollision is returned when a rename target is already declared.
	ErrNameCollision = errors.New("submodule name already in use")

	// ErrPathCollision is returned when a move target is already in use.
	ErrPathCollision = errors.New("submodule path already in use")

	// ErrInvalidPath is returned for paths that leave the repository root.
	ErrInvalidPath = errors.New("submodule path must stay inside the repository")

	// ErrInvalidName is returned for names that cannot safely name git's
	// module directory (absolute, or holding a ".." segment).
	ErrInvalidName = vcs.ErrInvalidModuleName
)

type (
	// Record is one declared submodule.
	Record struct {
		Name string
		// Path is slash-separated and relative to the repository root.
		Path string
		// Branch is nil when the declaration has no branch key, and points to
		// an empty string when the key is present but empty.
		Branch *string
		URL    string
	}

	// CollisionKind tells which field of a record collided.
	CollisionKind string

	// CollisionError reports a rename or move onto an identifier or path that
	// another record (or the filesystem) already uses.
	CollisionError struct {
		Kind  CollisionKind
		Name  string
		Value string
		// Owner is the record that already holds Value, empty for on-disk
		// collisions.
		Owner string
	}

	// Registry is the in-memory view of .gitmodules. Every mutation goes
	// through the backend and is persisted before the method returns.
	Registry struct {
		backend vcs.Backend
		file    string
		cfg     *config.Config
	}
)

const (
	// CollisionName marks a name collision.
	CollisionName CollisionKind = "name"
	// CollisionPath marks a path collision.
	CollisionPath CollisionKind = "path"
)

// Error implements the error interface.
func (e *CollisionError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("cannot use %s %q for submodule %q: already used by %q", e.Kind, e.Value, e.Name, e.Owner)
	}
	return fmt.Sprintf("cannot use %s %q for submodule %q: already exists", e.Kind, e.Value, e.Name)
}

// Unwrap returns ErrNameCollision or ErrPathCollision.
func (e *CollisionError) Unwrap() error {
	if e.Kind == CollisionName {
		return ErrNameCollision
	}
	return ErrPathCollision
}

// IsPullRequest reports whether the record vendors a pull request, judged by
// a "PRs" or "pr" segment in its path or name.
func (r Record) IsPullRequest() bool {
	return layout.IsPullRequestPath(r.Path) || layout.IsPullRequestPath(r.Name)
}

// BranchOr returns the declared branch or fallback when none is set.
func (r Record) BranchOr(fallback string) string {
	if r.Branch == nil {
		return fallback
	}
	return *r.Branch
}

// HasBranch reports whether the declaration carries a branch key.
func (r Record) HasBranch() bool { return r.Branch != nil }

// Load reads the repository's .gitmodules.
func Load(ctx context.Context, backend vcs.Backend) (*Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file := filepath.Join(backend.Root(), vcs.ModulesFile)
	cfg, err := backend.ReadConfig(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissingDeclarationFile
		}
		return nil, fmt.Errorf("read %s: %w", vcs.ModulesFile, err)
	}
	return &Registry{backend: backend, file: file, cfg: cfg}, nil
}

// File returns the absolute path of the declaration file.
func (r *Registry) File() string { return r.file }

func (r *Registry) subsections() config.Subsections {
	if !r.cfg.HasSection(vcs.SubmoduleSection) {
		return nil
	}
	return r.cfg.Section(vcs.SubmoduleSection).Subsections
}

func (r *Registry) subsection(name string) (*config.Subsection, bool) {
	for _, s := range r.subsections() {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func toRecord(s *config.Subsection) Record {
	rec := Record{
		Name: s.Name,
		Path: cleanPath(s.Option(keyPath)),
		URL:  strings.TrimSpace(s.Option(keyURL)),
	}
	if s.HasOption(keyBranch) {
		b := strings.TrimSpace(s.Option(keyBranch))
		rec.Branch = &b
	}
	return rec
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean(filepath.ToSlash(p))
}

// Records returns every declared submodule in declaration order.
func (r *Registry) Records() []Record {
	subs := r.subsections()
	out := make([]Record, 0, len(subs))
	for _, s := range subs {
		out = append(out, toRecord(s))
	}
	return out
}

// Len returns the number of declared submodules.
func (r *Registry) Len() int { return len(r.subsections()) }

// Get returns the record declared as name.
func (r *Registry) Get(name string) (Record, bool) {
	s, ok := r.subsection(name)
	if !ok {
		return Record{}, false
	}
	return toRecord(s), true
}

// ByPath returns the record whose path is p.
func (r *Registry) ByPath(p string) (Record, bool) {
	p = cleanPath(p)
	for _, rec := range r.Records() {
		if rec.Path == p {
			return rec, true
		}
	}
	return Record{}, false
}

func (r *Registry) mustGet(name string) (*config.Subsection, error) {
	s, ok := r.subsection(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return s, nil
}

// save writes the current configuration. On failure the in-memory view is
// reloaded from disk so it keeps matching the file.
func (r *Registry) save() error {
	if err := r.backend.WriteConfig(r.file, r.cfg); err != nil {
		if cfg, rerr := r.backend.ReadConfig(r.file); rerr == nil {
			r.cfg = cfg
		}
		return fmt.Errorf("write %s: %w", vcs.ModulesFile, err)
	}
	return nil
}

// Rename changes the identifier of a submodule, keeping its path, url,
// branch and any other option. git's own record of the submodule (its
// repository config section and module directory) follows the new name. On
// collision the declaration file is not touched.
func (r *Registry) Rename(ctx context.Context, name, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	old, err := r.mustGet(name)
	if err != nil {
		return err
	}
	if name == newName {
		return nil
	}
	if err := vcs.ValidateModuleName(newName); err != nil {
		return err
	}
	if _, exists := r.subsection(newName); exists {
		return &CollisionError{Kind: CollisionName, Name: name, Value: newName, Owner: newName}
	}

	options := slices.Clone(old.Options)
	section := r.cfg.Section(vcs.SubmoduleSection)
	renamed := &config.Subsection{Name: newName, Options: options}
	for i, s := range section.Subsections {
		if s.Name == name {
			section.Subsections[i] = renamed
			break
		}
	}
	if err := r.save(); err != nil {
		return err
	}
	if err := vcs.RenameModule(r.backend, name, newName, cleanPath(old.Option(keyPath))); err != nil {
		return fmt.Errorf("move git metadata of %q to %q: %w", name, newName, err)
	}
	if err := r.backend.SyncSubmoduleURLs(ctx); err != nil {
		return fmt.Errorf("sync submodule urls after renaming %q: %w", name, err)
	}
	return r.backend.Stage(ctx, vcs.ModulesFile)
}

// Move relocates a submodule to newPath. The target must be neither
// declared by another submodule nor present on disk; in that case nothing
// is changed.
func (r *Registry) Move(ctx context.Context, name, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub, err := r.mustGet(name)
	if err != nil {
		return err
	}
	newPath = cleanPath(newPath)
	if newPath == "" || newPath == "." || strings.HasPrefix(newPath, "../") || path.IsAbs(newPath) {
		return fmt.Errorf("%q: %w", newPath, ErrInvalidPath)
	}
	oldPath := cleanPath(sub.Option(keyPath))
	if oldPath == newPath {
		return nil
	}
	if owner, ok := r.ByPath(newPath); ok {
		return &CollisionError{Kind: CollisionPath, Name: name, Value: newPath, Owner: owner.Name}
	}
	if _, err := os.Lstat(filepath.Join(r.backend.Root(), filepath.FromSlash(newPath))); err == nil {
		return &CollisionError{Kind: CollisionPath, Name: name, Value: newPath}
	}

	if err := r.backend.Move(ctx, oldPath, newPath); err != nil {
		return fmt.Errorf("move %s to %s: %w", oldPath, newPath, err)
	}
	sub.SetOption(keyPath, newPath)
	if err := r.save(); err != nil {
		return err
	}
	return r.backend.Stage(ctx, vcs.ModulesFile, oldPath, newPath)
}

// Remove drops the declaration of name. With cascade the submodule is also
// deinitialized, removed from the index, and its work tree and module
// metadata are deleted.
func (r *Registry) Remove(ctx context.Context, name string, cascade bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub, err := r.mustGet(name)
	if err != nil {
		return err
	}
	p := cleanPath(sub.Option(keyPath))

	if cascade && p != "" {
		moduleDir, err := vcs.ModuleDir(r.backend.GitDir(), name)
		if err != nil {
			return err
		}
		if err := r.backend.DeinitSubmodule(ctx, p); err != nil {
			return fmt.Errorf("deinit %s: %w", p, err)
		}
		if err := r.backend.RemoveFromIndex(ctx, p); err != nil {
			return fmt.Errorf("unstage %s: %w", p, err)
		}
		if err := os.RemoveAll(filepath.Join(r.backend.Root(), filepath.FromSlash(p))); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
		if err := os.RemoveAll(moduleDir); err != nil {
			return fmt.Errorf("delete module metadata for %q: %w", name, err)
		}
		// deinit skips submodules missing from the index.
		local := filepath.Join(r.backend.GitDir(), "config")
		_, registered, err := vcs.ReadOption(r.backend, local, vcs.SubmoduleSection, name, keyURL)
		if err != nil {
			return fmt.Errorf("read %s: %w", local, err)
		}
		if registered {
			if err := r.backend.RemoveSection(local, vcs.SubmoduleSection, name); err != nil {
				return fmt.Errorf("unregister %q: %w", name, err)
			}
		}
	}

	r.cfg.RemoveSubsection(vcs.SubmoduleSection, name)
	if s := r.cfg.Section(vcs.SubmoduleSection); len(s.Subsections) == 0 && len(s.Options) == 0 {
		r.cfg.RemoveSection(vcs.SubmoduleSection)
	}
	if err := r.save(); err != nil {
		return err
	}
	return r.backend.Stage(ctx, vcs.ModulesFile)
}

// SetBranch records the tracked branch of name.
func (r *Registry) SetBranch(ctx context.Context, name, branch string) error {
	return r.setOption(ctx, name, keyBranch, branch)
}

// SetURL records the remote of name and propagates it to the submodule's
// own configuration.
func (r *Registry) SetURL(ctx context.Context, name, url string) error {
	if err := r.setOption(ctx, name, keyURL, url); err != nil {
		return err
	}
	return r.backend.SyncSubmoduleURLs(ctx)
}

func (r *Registry) setOption(ctx context.Context, name, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub, err := r.mustGet(name)
	if err != nil {
		return err
	}
	sub.SetOption(key, value)
	if err := r.save(); err != nil {
		return err
	}
	return r.backend.Stage(ctx, vcs.ModulesFile)
}

// Add registers a new submodule through the backend and reloads the
// declaration file.
func (r *Registry) Add(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Path = cleanPath(rec.Path)
	if rec.Name == "" {
		rec.Name = rec.Path
	}
	if err := vcs.ValidateModuleName(rec.Name); err != nil {
		return err
	}
	if _, exists := r.subsection(rec.Name); exists {
		return &CollisionError{Kind: CollisionName, Name: rec.Name, Value: rec.Name, Owner: rec.Name}
	}
	if owner, ok := r.ByPath(rec.Path); ok {
		return &CollisionError{Kind: CollisionPath, Name: rec.Name, Value: rec.Path, Owner: owner.Name}
	}
	if err := r.backend.AddSubmodule(ctx, rec.URL, rec.Path, rec.Name, rec.BranchOr("")); err != nil {
		return fmt.Errorf("add submodule %q: %w", rec.Name, err)
	}
	cfg, err := r.backend.ReadConfig(r.file)
	if err != nil {
		return fmt.Errorf("reload %s: %w", vcs.ModulesFile, err)
	}
	r.cfg = cfg
	return nil
}
