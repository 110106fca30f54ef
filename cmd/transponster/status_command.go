package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"transponster/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if api.IsUnavailable(err) {
				if asJSON {
					return writeJSON(cmd, api.DaemonStatus{})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(status))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func renderStatus(status api.DaemonStatus) string {
	wf := status.Workflow
	pairs := [][2]string{
		{"Daemon", runningLabel(status.Running)},
		{"PID", strconv.Itoa(status.PID)},
		{"Started", dash(status.StartedAt)},
		{"Bot user", dash(status.BotUser)},
		{"Drive", yesNo(status.DriveEnabled)},
		{"Mappings", fmt.Sprintf("%d (%s)", status.MappingCount, status.MappingsDBPath)},
		{"Workflow", runningLabel(wf.Running)},
		{"Pending uploads", strconv.Itoa(wf.PendingUploads)},
		{"Active translations", strconv.Itoa(wf.ActiveTranslations)},
		{"Batches", strconv.Itoa(wf.Batches)},
		{"Files", fmt.Sprintf("%d ok, %d failed", wf.FilesSucceeded, wf.FilesFailed)},
		{"Translations", fmt.Sprintf("%d ok, %d failed", wf.Translations, wf.TranslationsFailed)},
		{"Last batch", dash(wf.LastBatchAt)},
	}
	if wf.LastError != "" {
		pairs = append(pairs, [2]string{"Last error", wf.LastError})
	}
	return renderKeyValues(pairs)
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
