package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

var (
	// ErrCopyFailed marks failures of the cross-device copy fallback.
	ErrCopyFailed = errors.New("copy failed")
	// ErrRenameFailed marks failures of the same-device rename.
	ErrRenameFailed = errors.New("rename failed")
)

// MoveOptions controls Move.
type MoveOptions struct {
	// Overwrite allows replacing an existing destination.
	Overwrite bool
	// Verify hashes source and destination after a cross-device copy.
	Verify bool
}

// MoveResult describes how a move completed.
type MoveResult struct {
	CrossDevice bool
	Bytes       int64
}

// CopyFile streams src to dst, preserving the source permission bits.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return CopyFileMode(src, dst, info.Mode().Perm())
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified copies src to dst and then re-reads dst, comparing SHA256
// digests and sizes. Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := CopyFileMode(src, dst, srcInfo.Mode().Perm()); err != nil {
		_ = os.Remove(dst)
		return err
	}

	srcSum, srcSize, err := hashFile(src)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("hash source: %w", err)
	}
	dstSum, dstSize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("hash destination: %w", err)
	}
	if srcSize != dstSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, dstSize)
	}
	if !bytes.Equal(srcSum, dstSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}

// IsCrossDevice reports whether err is a cross-device link error.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// Exists reports whether anything (including a dangling symlink) occupies path.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Move relocates src to dst. Without Overwrite an existing dst is never
// replaced: the rename refuses atomically where the platform allows it. When
// src and dst live on different devices the file is copied (optionally
// verified) and the source removed. Copy-path failures wrap ErrCopyFailed;
// rename failures wrap ErrRenameFailed.
func Move(src, dst string, opts MoveOptions) (MoveResult, error) {
	var err error
	if opts.Overwrite {
		err = os.Rename(src, dst)
	} else {
		err = RenameNoReplace(src, dst)
	}
	if err == nil {
		return MoveResult{}, nil
	}
	if !IsCrossDevice(err) {
		return MoveResult{}, fmt.Errorf("%w: %w", ErrRenameFailed, err)
	}
	return copyAcrossDevices(src, dst, opts)
}

func copyAcrossDevices(src, dst string, opts MoveOptions) (MoveResult, error) {
	result := MoveResult{CrossDevice: true}
	info, err := os.Stat(src)
	if err != nil {
		return result, fmt.Errorf("%w: stat source: %w", ErrCopyFailed, err)
	}

	// Stage next to the destination so the final step is a same-device rename.
	staged := filepath.Join(filepath.Dir(dst), ".filer-"+filepath.Base(dst)+".partial")
	_ = os.Remove(staged)
	if opts.Verify {
		err = CopyFileVerified(src, staged)
	} else {
		err = CopyFileMode(src, staged, info.Mode().Perm())
	}
	if err != nil {
		_ = os.Remove(staged)
		return result, fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	if opts.Overwrite {
		err = os.Rename(staged, dst)
	} else {
		err = RenameNoReplace(staged, dst)
	}
	if err != nil {
		_ = os.Remove(staged)
		return result, fmt.Errorf("%w: place copy: %w", ErrCopyFailed, err)
	}

	if err := os.Remove(src); err != nil {
		// Leave exactly one copy behind.
		_ = os.Remove(dst)
		return result, fmt.Errorf("%w: remove source: %w", ErrCopyFailed, err)
	}
	result.Bytes = info.Size()
	return result, nil
}

// renameGuarded refuses to replace an existing destination, checking
// immediately before the rename.
func renameGuarded(src, dst string) error {
	exists, err := Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	}
	return os.Rename(src, dst)
}
