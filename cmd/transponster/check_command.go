package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"transponster/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe Slack, the transcription service, the LLM and Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			results := preflight.RunAll(checkCtx, cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall time limit for the checks")
	return cmd
}
