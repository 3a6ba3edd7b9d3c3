package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/taxonomy"
)

type watchedFolderJSON struct {
	ID                  int64      `json:"id"`
	Path                string     `json:"path"`
	Active              bool       `json:"active"`
	AutoOrganize        bool       `json:"auto_organize"`
	ConfidenceThreshold string     `json:"confidence_threshold"`
	FileTypes           []string   `json:"file_types,omitempty"`
	NotifyOnOrganize    bool       `json:"notify_on_organize"`
	FilesProcessed      int64      `json:"files_processed"`
	FilesOrganized      int64      `json:"files_organized"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage watched folders",
	}
	watchCmd.AddCommand(newWatchListCommand(ctx))
	watchCmd.AddCommand(newWatchAddCommand(ctx))
	watchCmd.AddCommand(newWatchRemoveCommand(ctx))
	watchCmd.AddCommand(newWatchScanCommand(ctx))
	watchCmd.AddCommand(newWatchActivityCommand(ctx))
	return watchCmd
}

func newWatchListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watched folders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				folders, err := svc.Store.ListWatchedFolders(cmd.Context(), false)
				if err != nil {
					return err
				}
				if asJSON {
					out := make([]watchedFolderJSON, 0, len(folders))
					for _, f := range folders {
						out = append(out, watchedFolderJSON{
							ID:                  f.ID,
							Path:                f.Path,
							Active:              f.Active,
							AutoOrganize:        f.AutoOrganize,
							ConfidenceThreshold: f.ConfidenceThreshold.String(),
							FileTypes:           f.FileTypes,
							NotifyOnOrganize:    f.NotifyOnOrganize,
							FilesProcessed:      f.FilesProcessed,
							FilesOrganized:      f.FilesOrganized,
							LastCheckedAt:       f.LastCheckedAt,
						})
					}
					return writeJSON(cmd, out)
				}
				if len(folders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No watched folders")
					return nil
				}
				rows := make([][]string, 0, len(folders))
				for _, f := range folders {
					checked := "never"
					if f.LastCheckedAt != nil {
						checked = f.LastCheckedAt.Local().Format(time.DateTime)
					}
					types := "all"
					if len(f.FileTypes) > 0 {
						types = strings.Join(f.FileTypes, ",")
					}
					rows = append(rows, []string{
						strconv.FormatInt(f.ID, 10),
						f.Path,
						yesNo(f.Active),
						yesNo(f.AutoOrganize),
						f.ConfidenceThreshold.String(),
						types,
						fmt.Sprintf("%d/%d", f.FilesOrganized, f.FilesProcessed),
						checked,
					})
				}
				writeRows(cmd, []string{"ID", "Path", "Active", "Auto", "Threshold", "Types", "Organized", "Last Checked"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newWatchAddCommand(ctx *commandContext) *cobra.Command {
	var (
		autoOrganize bool
		threshold    string
		fileTypes    []string
		subdirs      bool
		notify       bool
		inactive     bool
	)
	cmd := &cobra.Command{
		Use:   "add <dir>",
		Short: "Watch a directory for new files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("watch %s: %w", args[0], err)
			}
			if !info.IsDir() {
				return fmt.Errorf("watch %s: not a directory", args[0])
			}
			confidence, err := taxonomy.ParseConfidence(threshold)
			if err != nil {
				return err
			}
			cfg := taxonomy.WatchedFolderConfig{
				Path:                  args[0],
				Active:                !inactive,
				AutoOrganize:          autoOrganize,
				ConfidenceThreshold:   confidence,
				IncludeSubdirectories: subdirs,
				FileTypes:             fileTypes,
				NotifyOnOrganize:      notify,
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				created, err := svc.Store.CreateWatchedFolder(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (id %d)\n", created.Path, created.ID)
				if created.Active {
					fmt.Fprintln(cmd.OutOrStdout(), "Restart the daemon to begin monitoring")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&autoOrganize, "auto-organize", false, "Move files automatically when a suggestion meets the threshold")
	cmd.Flags().StringVar(&threshold, "threshold", "medium", "Minimum confidence for auto-organize (low, medium, high)")
	cmd.Flags().StringSliceVar(&fileTypes, "types", nil, "Only consider these file types or extensions (for example document,pdf)")
	cmd.Flags().BoolVar(&subdirs, "subdirs", false, "Include subdirectories")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a notification for each organized file")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Register the folder without monitoring it")
	return cmd
}

func newWatchRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Stop watching a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "watch")
			if err != nil {
				return err
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				if err := svc.Store.DeleteWatchedFolder(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed watched folder %d\n", id)
				return nil
			})
		},
	}
}

func newWatchScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan <id>",
		Short: "Run the watch pipeline over files already in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "watch")
			if err != nil {
				return err
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				result, err := svc.Supervisor.ProcessExistingFiles(cmd.Context(), id)
				if asJSON {
					if jsonErr := writeJSON(cmd, map[string]int{
						"processed": result.Processed,
						"organized": result.Organized,
						"queued":    result.Queued,
						"skipped":   result.Skipped,
						"errors":    result.Errors,
					}); jsonErr != nil {
						return jsonErr
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Processed %d files: %d organized, %d queued, %d skipped, %d errors\n",
						result.Processed, result.Organized, result.Queued, result.Skipped, result.Errors)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newWatchActivityCommand(ctx *commandContext) *cobra.Command {
	var folderID int64
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent watch pipeline decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				entries, err := svc.Store.ListActivity(cmd.Context(), folderID, limit)
				if err != nil {
					return err
				}
				if asJSON {
					out := make([]daemon.ActivityEntry, 0, len(entries))
					for _, e := range entries {
						out = append(out, daemon.ActivityEntry{
							ID:           e.ID,
							FolderID:     e.FolderID,
							Filename:     e.Filename,
							Path:         e.Path,
							Action:       string(e.Action),
							RuleID:       e.RuleID,
							TargetFolder: e.TargetFolder,
							Message:      e.ErrorMessage,
							CreatedAt:    e.CreatedAt,
						})
					}
					return writeJSON(cmd, out)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No activity")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.CreatedAt.Local().Format(time.DateTime),
						strconv.FormatInt(e.FolderID, 10),
						string(e.Action),
						e.Filename,
						firstNonEmpty(e.TargetFolder, "-"),
						e.ErrorMessage,
					})
				}
				writeRows(cmd, []string{"Time", "Watch", "Action", "File", "Target", "Message"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&folderID, "folder", 0, "Only show entries for this watched folder id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
