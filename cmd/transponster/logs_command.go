package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"transponster/internal/logging"
	"transponster/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()

			recent, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(recent) == 0 {
					if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
						fmt.Fprintf(cmd.ErrOrStderr(), "No log at %s; has `transponster serve` run yet?\n", path)
					}
				}
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, filter, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only lines with this event_type")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only lines from this component")
	cmd.Flags().StringVar(&filter.FileID, "file", "", "Only lines about this Slack file id")
	return cmd
}
