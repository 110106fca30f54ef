package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transponster/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ValidateDaemon(); err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in log records")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Skip external service checks at startup")
	return cmd
}
