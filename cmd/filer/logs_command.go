package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"filer/internal/logging"
	"filer/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logs.Options
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.configValue()
			path := logging.PointerPath(cfg.Paths.LogDir)
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logs.Tail(runCtx, path, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep streaming new lines")
	cmd.Flags().StringVar(&opts.Component, "component", "", "Only show lines from this component (watcher, organizer, matcher, ...)")
	cmd.Flags().StringVar(&opts.Contains, "grep", "", "Only show lines containing this text")
	return cmd
}
