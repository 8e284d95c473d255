// Package atomicfile provides crash-safe temp-then-rename file writes.
// Grounded on the teacher's rename-probe dance in
// internal/attractor/engine/rust_sandbox_preflight.go: CreateTemp in the
// destination directory, write, fsync, then os.Rename into place so a
// reader never observes a partial file.
package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// Write atomically replaces path with data. Parent directories are created
// on demand.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".verax-tmp-*")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: write temp %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: fsync temp %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: close temp %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("atomicfile: chmod temp %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return crossDeviceRename(tmpName, path, perm)
		}
		return fmt.Errorf("atomicfile: rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}

// crossDeviceRename handles the rare case where the temp directory and the
// destination live on different filesystems (os.Rename cannot cross
// devices). It copies the bytes into a sibling of the destination and
// renames from there, which is still atomic with respect to readers of path.
func crossDeviceRename(tmpName, dst string, perm os.FileMode) error {
	sibling := dst + ".verax-tmp-xdev"
	src, err := os.Open(tmpName)
	if err != nil {
		return fmt.Errorf("atomicfile: reopen temp %s: %w", tmpName, err)
	}
	defer src.Close()

	out, err := os.OpenFile(sibling, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("atomicfile: create sibling %s: %w", sibling, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(sibling)
		return fmt.Errorf("atomicfile: cross-device copy into %s: %w", sibling, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(sibling)
		return fmt.Errorf("atomicfile: cross-device fsync %s: %w", sibling, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(sibling)
		return err
	}
	if err := os.Rename(sibling, dst); err != nil {
		_ = os.Remove(sibling)
		return fmt.Errorf("atomicfile: cross-device rename %s -> %s: %w", sibling, dst, err)
	}
	return nil
}
