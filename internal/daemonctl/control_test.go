package daemonctl

import (
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"filer/internal/daemonrun"
	"filer/internal/testsupport"
)

func writePID(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
}

func TestProcessInfo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	alive, pid, err := ProcessInfo(cfg)
	if err != nil || alive || pid != 0 {
		t.Fatalf("expected no daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}

	writePID(t, daemonrun.PIDPath(cfg), os.Getpid())
	alive, pid, err = ProcessInfo(cfg)
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("expected current process to be alive, got alive=%v pid=%d err=%v", alive, pid, err)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if _, err := StopAndTerminate(cfg, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopRefusesCurrentProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	writePID(t, daemonrun.PIDPath(cfg), os.Getpid())
	if _, err := StopAndTerminate(cfg, time.Second); err == nil {
		t.Fatal("expected stop to refuse signalling the test process")
	}
	if _, err := ForceKillProcess(cfg, 0); err == nil {
		t.Fatal("expected force kill to refuse the test process")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected an empty executable path to fail")
	}
}

func TestWaitForShutdownReturnsForExitedProcess(t *testing.T) {
	if err := WaitForShutdown(-1, 50*time.Millisecond); err != nil {
		t.Fatalf("expected an invalid pid to count as stopped: %v", err)
	}
}
