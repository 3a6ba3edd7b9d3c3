package watcher_test

import (
	"sync"
	"testing"
	"time"

	"filer/internal/watcher"
)

type fireLog struct {
	mu    sync.Mutex
	calls []string
}

func (f *fireLog) record(key string) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
}

func (f *fireLog) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	var log fireLog
	d := watcher.NewDebouncer(40*time.Millisecond, log.record)

	for range 5 {
		d.Add("a.pdf")
		time.Sleep(5 * time.Millisecond)
	}
	d.Add("b.pdf")
	if d.Pending() != 2 {
		t.Fatalf("expected 2 pending keys, got %d", d.Pending())
	}

	waitFor(t, time.Second, func() bool { return len(log.snapshot()) == 2 })
	time.Sleep(80 * time.Millisecond)
	calls := log.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected one call per key, got %v", calls)
	}
	if d.Pending() != 0 {
		t.Fatalf("expected no pending keys, got %d", d.Pending())
	}
}

func TestDebouncerCancel(t *testing.T) {
	var log fireLog
	d := watcher.NewDebouncer(30*time.Millisecond, log.record)

	d.Add("gone.pdf")
	if !d.Cancel("gone.pdf") {
		t.Fatal("expected Cancel to report a pending timer")
	}
	if d.Cancel("gone.pdf") {
		t.Fatal("second Cancel should report nothing pending")
	}
	d.Add("x")
	d.Add("y")
	if n := d.CancelAll(); n != 2 {
		t.Fatalf("expected CancelAll to drop 2, got %d", n)
	}

	time.Sleep(80 * time.Millisecond)
	if calls := log.snapshot(); len(calls) != 0 {
		t.Fatalf("cancelled timers fired: %v", calls)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
