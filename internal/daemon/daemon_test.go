package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"filer/internal/daemon"
	"filer/internal/logging"
	"filer/internal/taxonomy"
	"filer/internal/testsupport"
	"filer/internal/watcher"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)

	inbox := filepath.Join(testsupport.BaseDir(cfg), "inbox")
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := store.CreateWatchedFolder(context.Background(), taxonomy.WatchedFolderConfig{Path: inbox, Active: true}); err != nil {
		t.Fatalf("CreateWatchedFolder: %v", err)
	}

	source := watcher.NewMemorySource()
	d, err := daemon.New(cfg, store, daemon.Options{Logger: logging.NewNop(), Source: source})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if len(status.Watchers) != 1 || !status.Watchers[0].Running {
		t.Fatalf("expected one running watcher, got %+v", status.Watchers)
	}
	if !source.Active(inbox) {
		t.Fatal("expected the inbox to be subscribed")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if source.Active(inbox) {
		t.Fatal("stop should release watcher subscriptions")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := daemon.New(cfg, store, daemon.Options{Source: watcher.NewMemorySource()})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(first.Stop)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, err := daemon.New(cfg, store, daemon.Options{Source: watcher.NewMemorySource()})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected the lock to reject a second daemon")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("lock should be free after Stop: %v", err)
	}
	second.Stop()
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	sent, message, err := d.TestNotification(context.Background())
	if err != nil || sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result sent=%v message=%q err=%v", sent, message, err)
	}
}
