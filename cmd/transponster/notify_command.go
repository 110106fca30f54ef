package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transponster/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Operator notification utilities",
	}

	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to notifications.ntfy_topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				return errors.New("notifications.ntfy_topic is not set")
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	})

	return notifyCmd
}
