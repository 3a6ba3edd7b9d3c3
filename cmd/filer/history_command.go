package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/store"
	"filer/internal/taxonomy"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List organized files, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.RecordFilter{Limit: limit}
			if value := strings.ToLower(strings.TrimSpace(status)); value != "" {
				switch rs := taxonomy.RecordStatus(value); rs {
				case taxonomy.StatusMoved, taxonomy.StatusTracked, taxonomy.StatusUndone, taxonomy.StatusDeleted:
					filter.Status = rs
				default:
					return fmt.Errorf("unknown status %q (want moved, tracked, undone, or deleted)", status)
				}
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				records, err := svc.Store.ListOrganizedFiles(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					entries := make([]daemon.HistoryEntry, 0, len(records))
					for _, r := range records {
						entries = append(entries, daemon.HistoryEntry{
							ID:           r.ID,
							Filename:     r.Filename,
							OriginalPath: r.OriginalPath,
							CurrentPath:  r.CurrentPath,
							FolderNumber: r.FolderNumber,
							Status:       string(r.Status),
							OrganizedAt:  r.OrganizedAt,
						})
					}
					return writeJSON(cmd, entries)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No organized files")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.OrganizedAt.Local().Format(time.DateTime),
						r.FolderNumber,
						string(r.Status),
						r.Filename,
						r.OriginalPath,
					})
				}
				writeRows(cmd, []string{"ID", "Organized", "Folder", "Status", "File", "Original Path"}, rows,
					[]columnAlignment{alignRight})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by record status (moved, tracked, undone, deleted)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
