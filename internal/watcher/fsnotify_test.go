package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"filer/internal/logging"
	"filer/internal/watcher"
)

func TestFSNotifySourceReportsFilesInMovedDirectory(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	batch := filepath.Join(outside, "batch")
	if err := os.MkdirAll(filepath.Join(batch, ".cache"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"inner.pdf", ".hidden.pdf", filepath.Join(".cache", "skip.pdf")} {
		if err := os.WriteFile(filepath.Join(batch, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	sub, err := watcher.FSNotifySource{Logger: logging.NewNop()}.Watch(root, true)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	if err := os.Rename(batch, filepath.Join(root, "batch")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	want := filepath.Join(root, "batch", "inner.pdf")
	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for !seen[want] {
		select {
		case path := <-sub.Events():
			seen[path] = true
		case err := <-sub.Errors():
			t.Fatalf("unexpected watch error: %v", err)
		case <-deadline:
			t.Fatalf("expected %s among events, got %v", want, seen)
		}
	}
	for path := range seen {
		if filepath.Base(path) == ".hidden.pdf" || filepath.Base(path) == "skip.pdf" {
			t.Fatalf("hidden entry reported: %s", path)
		}
	}
}

func TestFSNotifySourceReportsNewFile(t *testing.T) {
	root := t.TempDir()
	sub, err := watcher.FSNotifySource{Logger: logging.NewNop()}.Watch(root, false)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	path := filepath.Join(root, "scan.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case got := <-sub.Events():
		if got != path {
			t.Fatalf("expected %s, got %s", path, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event for new file")
	}
}
