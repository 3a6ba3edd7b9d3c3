// Package daemonctl starts and stops a detached filer daemon using the PID
// file written by daemonrun.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"filer/internal/config"
	"filer/internal/daemonrun"
	"filer/internal/logging"
)

// ErrDaemonNotRunning indicates no live daemon owns the PID file.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `filer daemon run` process in its own session.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// ProcessInfo reports whether the PID file names a live process.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	pid, err := daemonrun.ReadPID(cfg)
	if err != nil {
		return false, 0, err
	}
	if pid <= 0 {
		return false, 0, nil
	}
	return ProcessAlive(pid), pid, nil
}

// ProcessAlive sends signal 0 to pid. EPERM means the process exists but
// belongs to another user.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// WaitForStart polls until a live daemon has written its PID file.
func WaitForStart(cfg *config.Config, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		alive, pid, err := ProcessInfo(cfg)
		if err == nil && alive {
			return pid, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return 0, fmt.Errorf("daemon failed to start (see %s): %w", logging.PointerPath(cfg.Paths.LogDir), lastErr)
}

// EnsureStarted launches the daemon unless one is already alive.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	alive, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StartResult{}, err
	}
	if alive {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	pid, err = WaitForStart(cfg, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// WaitForShutdown waits for pid to exit.
func WaitForShutdown(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop: process %d still running", pid)
}

// StopAndTerminate sends SIGTERM and force-kills the daemon if it is still
// alive after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	alive, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !alive {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{PID: pid}
	if WaitForShutdown(pid, gracePeriod) == nil {
		return result, nil
	}

	killedPID, err := ForceKillProcess(cfg, pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// ForceKillProcess sends SIGKILL to the daemon and removes its PID and lock
// files, which a killed process cannot clean up itself.
func ForceKillProcess(cfg *config.Config, fallbackPID int) (int, error) {
	pid, err := daemonrun.ReadPID(cfg)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid")
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	for _, path := range []string{daemonrun.PIDPath(cfg), filepath.Join(cfg.Paths.DataDir, "filerd.lock")} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pid, fmt.Errorf("remove %q: %w", path, err)
		}
	}
	return pid, nil
}

// Restart stops the daemon if running, then starts it again.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (StopResult, StartResult, error) {
	stopResult, err := StopAndTerminate(cfg, stopGracePeriod)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return stopResult, StartResult{}, err
	}
	startResult, err := EnsureStarted(cfg, executablePath, opts, startWaitTimeout)
	return stopResult, startResult, err
}
