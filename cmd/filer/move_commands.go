package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/organizer"
	"filer/internal/services"
	"filer/internal/taxonomy"
)

type moveFlags struct {
	folder      string
	auto        bool
	minimum     string
	strategy    string
	drive       string
	stopOnError bool
	asJSON      bool
}

type batchItemJSON struct {
	Item        string `json:"item"`
	Status      string `json:"status"`
	Destination string `json:"destination,omitempty"`
	RecordID    int64  `json:"record_id,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

type batchJSON struct {
	BatchID   string          `json:"batch_id"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Stopped   bool            `json:"stopped"`
	Items     []batchItemJSON `json:"items"`
}

func (f *moveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.folder, "to", "t", "", "Destination folder number (for example 11.01)")
	cmd.Flags().BoolVar(&f.auto, "auto", false, "Use each file's best suggestion instead of --to")
	cmd.Flags().StringVar(&f.minimum, "min-confidence", "medium", "Lowest confidence --auto accepts (low, medium, high)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Conflict strategy override (rename, skip, overwrite)")
	cmd.Flags().StringVar(&f.drive, "drive", "", "Storage drive identifier from [storage.drives]")
}

// requests resolves each file to a MoveRequest. With --auto, files without a
// suggestion at or above the minimum confidence are reported and left out.
func (f *moveFlags) requests(cmd *cobra.Command, svc *daemon.Services, files []string) ([]organizer.MoveRequest, []batchItemJSON, error) {
	if f.auto == (strings.TrimSpace(f.folder) != "") {
		return nil, nil, errors.New("specify exactly one of --to or --auto")
	}
	var strategy organizer.Strategy
	if strings.TrimSpace(f.strategy) != "" {
		parsed, err := organizer.ParseStrategy(f.strategy)
		if err != nil {
			return nil, nil, err
		}
		strategy = parsed
	}

	requests := make([]organizer.MoveRequest, 0, len(files))
	if !f.auto {
		for _, file := range files {
			requests = append(requests, organizer.MoveRequest{
				SourcePath:   file,
				FolderNumber: f.folder,
				Strategy:     strategy,
				DriveID:      f.drive,
			})
		}
		return requests, nil, nil
	}

	minimum, err := taxonomy.ParseConfidence(f.minimum)
	if err != nil {
		return nil, nil, err
	}
	var unmatched []batchItemJSON
	for _, file := range files {
		desc, err := taxonomy.DescribeFile(file)
		if err != nil {
			unmatched = append(unmatched, batchItemJSON{Item: file, Status: "error", Error: err.Error()})
			continue
		}
		suggestions, err := svc.Engine.MatchFile(cmd.Context(), desc)
		if err != nil {
			return nil, nil, err
		}
		if len(suggestions) == 0 || !suggestions[0].Confidence.AtLeast(minimum) {
			unmatched = append(unmatched, batchItemJSON{Item: file, Status: "unmatched"})
			continue
		}
		req := organizer.MoveRequest{
			SourcePath:   desc.Path,
			FolderNumber: suggestions[0].Folder.Number,
			Strategy:     strategy,
			DriveID:      f.drive,
		}
		if suggestions[0].Rule != nil {
			id := suggestions[0].Rule.ID
			req.RuleID = &id
		}
		requests = append(requests, req)
	}
	return requests, unmatched, nil
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	var flags moveFlags
	cmd := &cobra.Command{
		Use:   "move <file>...",
		Short: "Move files into a Johnny.Decimal folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				requests, unmatched, err := flags.requests(cmd, svc, args)
				if err != nil {
					return err
				}
				opts := organizer.BatchOptions{StopOnError: flags.stopOnError}
				if !flags.asJSON {
					opts.OnItem = func(item organizer.BatchItem) {
						printBatchItem(cmd, toBatchItemJSON(item))
					}
				}
				result, err := svc.Organizer.BatchMove(cmd.Context(), requests, opts)
				for _, item := range result.Items {
					if item.Err == nil && item.Move != nil && item.Move.Status == organizer.MoveStatusMoved && item.Move.RecordID > 0 {
						if rid := requests[item.Index].RuleID; rid != nil {
							if recErr := svc.Engine.RecordMatch(cmd.Context(), *rid); recErr != nil {
								fmt.Fprintf(cmd.ErrOrStderr(), "warn: rule %d match count not updated: %v\n", *rid, recErr)
							}
						}
					}
				}
				summary := toBatchJSON(result)
				summary.Items = append(summary.Items, unmatched...)
				summary.Total += len(unmatched)
				summary.Skipped += len(unmatched)
				if flags.asJSON {
					if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
						return jsonErr
					}
				} else {
					for _, item := range unmatched {
						printBatchItem(cmd, item)
					}
					printBatchSummary(cmd, summary)
				}
				if err != nil {
					return err
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%d of %d moves failed", summary.Failed, summary.Total)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.stopOnError, "stop-on-error", false, "Stop the batch at the first failure")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Output as JSON")
	return cmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var flags moveFlags
	cmd := &cobra.Command{
		Use:   "preview <file>...",
		Short: "Show where files would be moved without moving them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				requests, unmatched, err := flags.requests(cmd, svc, args)
				if err != nil {
					return err
				}
				previews := svc.Organizer.PreviewOperations(cmd.Context(), requests)
				type previewJSON struct {
					Source    string `json:"source"`
					Folder    string `json:"folder"`
					Action    string `json:"action,omitempty"`
					Planned   string `json:"planned_path,omitempty"`
					Collision bool   `json:"collision"`
					Error     string `json:"error,omitempty"`
				}
				out := make([]previewJSON, 0, len(previews)+len(unmatched))
				for _, p := range previews {
					entry := previewJSON{
						Source:    p.Request.SourcePath,
						Folder:    p.Request.FolderNumber,
						Action:    string(p.Action),
						Planned:   p.PlannedPath,
						Collision: p.Collision,
					}
					if p.Err != nil {
						entry.Error = p.Err.Error()
					}
					out = append(out, entry)
				}
				for _, item := range unmatched {
					out = append(out, previewJSON{Source: item.Item, Error: firstNonEmpty(item.Error, "no suggestion")})
				}
				if flags.asJSON {
					return writeJSON(cmd, out)
				}
				rows := make([][]string, 0, len(out))
				for _, p := range out {
					result := p.Planned
					if p.Error != "" {
						result = "error: " + p.Error
					}
					rows = append(rows, []string{p.Source, p.Folder, firstNonEmpty(p.Action, "-"), yesNo(p.Collision), result})
				}
				writeRows(cmd, []string{"Source", "Folder", "Action", "Collision", "Destination"}, rows, nil)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRollbackCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var stopOnError bool
	cmd := &cobra.Command{
		Use:   "rollback <record-id>...",
		Short: "Return organized files to their original locations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid record id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				opts := organizer.BatchOptions{StopOnError: stopOnError}
				if !asJSON {
					opts.OnItem = func(item organizer.BatchItem) {
						printBatchItem(cmd, toBatchItemJSON(item))
					}
				}
				result, err := svc.Organizer.BatchRollback(cmd.Context(), ids, opts)
				summary := toBatchJSON(result)
				if asJSON {
					if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
						return jsonErr
					}
				} else {
					printBatchSummary(cmd, summary)
				}
				if err != nil {
					return err
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%d of %d rollbacks failed", summary.Failed, summary.Total)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Stop at the first failure")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func toBatchItemJSON(item organizer.BatchItem) batchItemJSON {
	out := batchItemJSON{Item: item.Label}
	switch {
	case item.Err != nil:
		out.Status = "error"
		out.Error = item.Err.Error()
		out.ErrorKind = string(services.Classify(item.Err))
		if item.Move != nil {
			out.Destination = item.Move.DestinationPath
		}
	case item.Move != nil:
		out.Status = string(item.Move.Status)
		out.Destination = item.Move.DestinationPath
		out.RecordID = item.Move.RecordID
	case item.Rollback != nil:
		out.Status = "restored"
		out.Destination = item.Rollback.RestoredPath
		out.RecordID = item.Rollback.RecordID
	}
	return out
}

func toBatchJSON(result organizer.BatchResult) batchJSON {
	out := batchJSON{
		BatchID:   result.BatchID,
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Stopped:   result.Stopped,
		Items:     make([]batchItemJSON, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		out.Items = append(out.Items, toBatchItemJSON(item))
	}
	return out
}

func printBatchItem(cmd *cobra.Command, item batchItemJSON) {
	out := cmd.OutOrStdout()
	switch item.Status {
	case "error":
		fmt.Fprintf(out, "✗ %s: %s\n", item.Item, item.Error)
	case "unmatched":
		fmt.Fprintf(out, "? %s: no confident suggestion\n", item.Item)
	case string(organizer.MoveStatusSkipped):
		fmt.Fprintf(out, "- %s: skipped\n", item.Item)
	default:
		fmt.Fprintf(out, "✓ %s -> %s", item.Item, item.Destination)
		if item.RecordID > 0 {
			fmt.Fprintf(out, " (record %d)", item.RecordID)
		}
		fmt.Fprintln(out)
	}
}

func printBatchSummary(cmd *cobra.Command, summary batchJSON) {
	fmt.Fprintf(cmd.OutOrStdout(), "%d succeeded, %d skipped, %d failed", summary.Succeeded, summary.Skipped, summary.Failed)
	if summary.Stopped {
		fmt.Fprint(cmd.OutOrStdout(), " (stopped early)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
