// SPDX-License-Identifier: MPL-2.0

// Package fsops implements the filesystem mutations behind submodule moves
// and addon materialization.
package fsops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// materializeSuffix names the staging copy used while materializing.
const materializeSuffix = ".__oops_materialize_tmp__"

var (
	// ErrMutationFailed is the sentinel error wrapped by MutationError.
	ErrMutationFailed = errors.New("filesystem mutation failed")
	// ErrNotSymlink is returned when materializing a path that is not a symlink.
	ErrNotSymlink = errors.New("not a symlink")
	// ErrNotDirectory is returned when a symlink does not point at a directory.
	ErrNotDirectory = errors.New("symlink target is not a directory")
	// ErrDestinationExists is returned when a move target is already present.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrStagingExists is returned when a materialize staging directory is
	// left over from an earlier run.
	ErrStagingExists = errors.New("temporary path already exists")
)

// MutationError reports a failed move or copy. The source is left intact
// whenever the destination could not be fully written.
type MutationError struct {
	Op  string
	Src string
	Dst string
	Err error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
}

// Unwrap returns both the sentinel and the cause.
func (e *MutationError) Unwrap() []error { return []error{ErrMutationFailed, e.Err} }

// MoveDir relocates src to dst, creating dst's parents. It tries an atomic
// rename first and falls back to copy, verify, then delete the source.
func MoveDir(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &MutationError{Op: "move", Src: src, Dst: dst, Err: ErrDestinationExists}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &MutationError{Op: "move", Src: src, Dst: dst, Err: err}
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := CopyTree(src, dst, nil); err != nil {
		_ = os.RemoveAll(dst)
		return &MutationError{Op: "copy", Src: src, Dst: dst, Err: err}
	}
	if err := verifyCopy(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return &MutationError{Op: "verify", Src: src, Dst: dst, Err: err}
	}
	if err := os.RemoveAll(src); err != nil {
		return &MutationError{Op: "remove source", Src: src, Dst: dst, Err: err}
	}
	return nil
}

// CopyTree copies src into dst. Symlinks are recreated as symlinks and
// entries whose base name is in ignore are skipped.
func CopyTree(src, dst string, ignore []string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != src && slices.Contains(ignore, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		default:
			return copyFile(p, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// verifyCopy checks that dst holds every entry of src with the same size.
func verifyCopy(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		srcInfo, err := os.Lstat(p)
		if err != nil {
			return err
		}
		dstInfo, err := os.Lstat(filepath.Join(dst, rel))
		if err != nil {
			return fmt.Errorf("missing %s in copy: %w", rel, err)
		}
		if srcInfo.Mode().Type() != dstInfo.Mode().Type() {
			return fmt.Errorf("type mismatch for %s", rel)
		}
		if srcInfo.Mode().IsRegular() && srcInfo.Size() != dstInfo.Size() {
			return fmt.Errorf("size mismatch for %s: %d != %d", rel, srcInfo.Size(), dstInfo.Size())
		}
		return nil
	})
}

// RewriteSymlinks walks root and, for every symlink whose raw target
// contains oldPath, replaces that substring with newPath. It returns the
// rewritten link paths relative to root.
func RewriteSymlinks(root, oldPath, newPath string, skipDirs []string) ([]string, error) {
	var rewritten []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != root && slices.Contains(skipDirs, d.Name()) {
			return filepath.SkipDir
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		ok, err := RewriteSymlink(p, oldPath, newPath)
		if err != nil {
			return err
		}
		if ok {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rewritten = append(rewritten, filepath.ToSlash(rel))
		}
		return nil
	})
	return rewritten, err
}

// RewriteSymlink replaces oldPath with newPath in the raw target of link.
// It reports whether the link was changed.
func RewriteSymlink(link, oldPath, newPath string) (bool, error) {
	target, err := os.Readlink(link)
	if err != nil {
		return false, err
	}
	if !strings.Contains(target, oldPath) {
		return false, nil
	}

	updated := strings.ReplaceAll(target, oldPath, newPath)
	if err := os.Remove(link); err != nil {
		return false, err
	}
	if err := os.Symlink(updated, link); err != nil {
		return false, fmt.Errorf("recreate symlink %s -> %s: %w", link, updated, err)
	}
	return true, nil
}

// Materialize replaces the symlink at link with a real copy of the
// directory it points to. Version control metadata is not copied. On
// failure the symlink is left in place. A staging directory left by an
// earlier run is never overwritten.
func Materialize(link string) error {
	info, err := os.Lstat(link)
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return fmt.Errorf("%s: %w", link, ErrNotSymlink)
	}

	raw, err := os.Readlink(link)
	if err != nil {
		return err
	}
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", link, err)
	}
	targetInfo, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !targetInfo.IsDir() {
		return fmt.Errorf("%s: %w", link, ErrNotDirectory)
	}

	tmp := filepath.Join(filepath.Dir(link), "."+filepath.Base(link)+materializeSuffix)
	if _, err := os.Lstat(tmp); err == nil {
		return fmt.Errorf("%s: %w", tmp, ErrStagingExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := CopyTree(target, tmp, []string{".git"}); err != nil {
		_ = os.RemoveAll(tmp)
		return &MutationError{Op: "copy", Src: target, Dst: tmp, Err: err}
	}
	if err := os.Remove(link); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := os.Rename(tmp, link); err != nil {
		// put the link back so the tree is unchanged
		_ = os.Symlink(raw, link)
		_ = os.RemoveAll(tmp)
		return &MutationError{Op: "replace", Src: tmp, Dst: link, Err: err}
	}
	return nil
}

// RemoveEmptyDirs deletes dir and every directory below it that contains
// nothing but empty directories. Symlinks and files keep their parents
// alive. It reports whether dir itself was removed; a missing dir is not an
// error.
func RemoveEmptyDirs(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	empty := true
	for _, e := range entries {
		if !e.IsDir() {
			empty = false
			continue
		}
		removed, err := RemoveEmptyDirs(filepath.Join(dir, e.Name()))
		if err != nil {
			return false, err
		}
		if !removed {
			empty = false
		}
	}
	if !empty {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, err
	}
	return true, nil
}
