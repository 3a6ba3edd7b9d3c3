package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, database, watched folders, and ntfy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				results := preflight.RunAll(cmd.Context(), ctx.configValue(), svc.Store)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					mark := "ok"
					if !r.Passed {
						mark = "FAIL"
					}
					rows = append(rows, []string{mark, r.Name, r.Detail})
				}
				writeRows(cmd, []string{"Result", "Check", "Detail"}, rows, nil)
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
				}
				return nil
			})
		},
	}
}
