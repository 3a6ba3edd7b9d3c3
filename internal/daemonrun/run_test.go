package daemonrun

import (
	"os"
	"path/filepath"
	"testing"

	"filer/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	pid, err := ReadPID(cfg)
	if err != nil || pid != 0 {
		t.Fatalf("expected no pid before the daemon runs, got %d, %v", pid, err)
	}

	if err := writePIDFile(filepath.Join(cfg.Paths.DataDir, "filerd.pid")); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err = ReadPID(cfg)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), pid)
	}
}
