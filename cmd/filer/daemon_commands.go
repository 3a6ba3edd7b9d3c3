package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"filer/internal/config"
	"filer/internal/daemon"
	"filer/internal/daemonctl"
	"filer/internal/daemonrun"
	"filer/internal/notifications"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon process commands",
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the filer daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    strings.TrimSpace(logLevel),
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}

const (
	stopGracePeriod  = 10 * time.Second
	startWaitTimeout = 10 * time.Second
)

func (c *commandContext) launchOptions() daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{ConfigPath: strings.TrimSpace(*c.configFlag)}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the filer daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, ctx.launchOptions(), startWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background filer daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon did not exit within %s; killed pid %d\n", stopGracePeriod, result.PID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the background filer daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			_, start, err := daemonctl.Restart(ctx.configValue(), exe, ctx.launchOptions(), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon restarted (pid %d)\n", start.PID)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and watcher status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.configValue()
			alive, pid, err := daemonctl.ProcessInfo(cfg)
			if err != nil {
				return err
			}

			var status *daemon.StatusResponse
			if alive && strings.TrimSpace(cfg.Paths.APIBind) != "" {
				status, err = fetchStatus(cmd.Context(), cfg)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: daemon API unavailable: %v\n", err)
				}
			}
			if status == nil {
				status, err = localStatus(cmd.Context(), ctx)
				if err != nil {
					return err
				}
				status.Running = alive
				status.PID = pid
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			if status.Running {
				fmt.Fprintf(out, "Daemon: running (pid %d)\n", status.PID)
			} else {
				fmt.Fprintln(out, "Daemon: not running")
			}
			fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
			if len(status.Watchers) == 0 {
				fmt.Fprintln(out, "No watched folders")
				return nil
			}
			rows := make([][]string, 0, len(status.Watchers))
			for _, w := range status.Watchers {
				state := w.State
				if state == "" {
					state = "-"
				}
				rows = append(rows, []string{
					strconv.FormatInt(w.ID, 10), w.Path, yesNo(w.Active), yesNo(w.CanRun), state, w.LastError,
				})
			}
			writeRows(cmd, []string{"ID", "Path", "Active", "Can Run", "State", "Last Error"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func fetchStatus(ctx context.Context, cfg *config.Config) (*daemon.StatusResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+cfg.Paths.APIBind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var status daemon.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// localStatus reads watched folders straight from the store when no daemon
// API is reachable.
func localStatus(ctx context.Context, cc *commandContext) (*daemon.StatusResponse, error) {
	status := &daemon.StatusResponse{}
	err := cc.withServices(func(svc *daemon.Services) error {
		status.DatabasePath = svc.Store.Path()
		watchers, err := svc.Supervisor.Status(ctx)
		if err != nil {
			return err
		}
		for _, w := range watchers {
			status.Watchers = append(status.Watchers, daemon.WatcherStatus{
				ID:        w.ID,
				Path:      w.Path,
				Active:    w.Active,
				Running:   w.Running,
				CanRun:    w.CanRun,
				State:     string(w.State),
				LastError: w.LastError,
			})
		}
		return nil
	})
	return status, err
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "ntfy topic not configured")
				return nil
			}
			svc := notifications.NewService(cfg, nil)
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
