package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/taxonomy"
)

type matchJSON struct {
	File        string           `json:"file"`
	Error       string           `json:"error,omitempty"`
	Suggestions []suggestionJSON `json:"suggestions"`
}

type suggestionJSON struct {
	Folder     string `json:"folder"`
	FolderName string `json:"folder_name"`
	Confidence string `json:"confidence"`
	Source     string `json:"source"`
	RuleID     *int64 `json:"rule_id,omitempty"`
	Reason     string `json:"reason"`
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var limit int
	cmd := &cobra.Command{
		Use:   "match <file>...",
		Short: "Suggest destination folders for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				files := make([]taxonomy.FileDescriptor, 0, len(args))
				var results []matchJSON
				for _, arg := range args {
					desc, err := taxonomy.DescribeFile(arg)
					if err != nil {
						results = append(results, matchJSON{File: arg, Error: err.Error()})
						continue
					}
					files = append(files, desc)
				}
				batch, err := svc.Engine.BatchMatch(cmd.Context(), files)
				if err != nil {
					return err
				}
				for _, res := range batch {
					entry := matchJSON{File: res.File.Path}
					if res.Err != nil {
						entry.Error = res.Err.Error()
					}
					for i, s := range res.Suggestions {
						if limit > 0 && i >= limit {
							break
						}
						entry.Suggestions = append(entry.Suggestions, toSuggestionJSON(s))
					}
					results = append(results, entry)
				}

				if asJSON {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				for i, res := range results {
					if i > 0 {
						fmt.Fprintln(out)
					}
					fmt.Fprintln(out, res.File)
					switch {
					case res.Error != "":
						fmt.Fprintf(out, "  error: %s\n", res.Error)
					case len(res.Suggestions) == 0:
						fmt.Fprintln(out, "  no suggestions")
					default:
						rows := make([][]string, 0, len(res.Suggestions))
						for _, s := range res.Suggestions {
							rule := "-"
							if s.RuleID != nil {
								rule = strconv.FormatInt(*s.RuleID, 10)
							}
							rows = append(rows, []string{s.Folder, s.FolderName, s.Confidence, rule, s.Reason})
						}
						writeRows(cmd, []string{"Folder", "Name", "Confidence", "Rule", "Reason"}, rows, nil)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum suggestions per file (0 for all)")
	return cmd
}

func toSuggestionJSON(s taxonomy.MatchSuggestion) suggestionJSON {
	out := suggestionJSON{
		Folder:     s.Folder.Number,
		FolderName: s.Folder.Name,
		Confidence: s.Confidence.String(),
		Source:     string(s.Source),
		Reason:     s.Reason,
	}
	if s.Rule != nil {
		id := s.Rule.ID
		out.RuleID = &id
	}
	return out
}
