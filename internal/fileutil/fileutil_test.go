package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dst")); !errors.Is(statErr, fs.ErrNotExist) {
		t.Fatalf("expected no destination, got %v", statErr)
	}
}

func TestRenameNoReplaceRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(src, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := RenameNoReplace(src, dst)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "b" {
		t.Fatalf("destination was replaced: %q", got)
	}
}

func TestMoveSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Move(src, dst, MoveOptions{})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if result.CrossDevice {
		t.Fatal("expected same-device move")
	}
	if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected source gone, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "payload" {
		t.Fatalf("unexpected destination content %q err=%v", got, err)
	}
}

func TestMoveRefusesExistingUnlessOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Move(src, dst, MoveOptions{})
	if !errors.Is(err, ErrRenameFailed) || !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected rename failure with fs.ErrExist, got %v", err)
	}

	if _, err := Move(src, dst, MoveOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite Move: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "new" {
		t.Fatalf("expected overwritten content, got %q", got)
	}
}

func TestCopyAcrossDevicesRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "sub", "out.txt")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("cross"), 0o600); err != nil {
		t.Fatal(err)
	}

	result, err := copyAcrossDevices(src, dst, MoveOptions{Verify: true})
	if err != nil {
		t.Fatalf("copyAcrossDevices: %v", err)
	}
	if !result.CrossDevice || result.Bytes != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected source removed, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, got %d entries", len(entries))
	}
}

func TestCopyAcrossDevicesMissingSourceIsCopyFailure(t *testing.T) {
	dir := t.TempDir()
	_, err := copyAcrossDevices(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"), MoveOptions{})
	if !errors.Is(err, ErrCopyFailed) {
		t.Fatalf("expected ErrCopyFailed, got %v", err)
	}
	if errors.Is(err, ErrRenameFailed) {
		t.Fatal("copy failure must not be reported as rename failure")
	}
}

func TestIsCrossDevice(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV})
	if !IsCrossDevice(wrapped) {
		t.Fatal("expected EXDEV to be detected")
	}
	if IsCrossDevice(errors.New("other")) {
		t.Fatal("unexpected cross-device detection")
	}
}
