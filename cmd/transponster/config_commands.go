package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"transponster/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if err := writeSampleConfig(target, overwrite); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Fill in the [slack], [transcription] and [llm] secrets, or export SLACK_BOT_TOKEN, SLACK_SIGNING_SECRET, ELEVENLABS_API_KEY and OPENROUTER_API_KEY.")
			fmt.Fprintln(out, "Then run `transponster check` and `transponster serve`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// initTarget resolves --path, defaulting to ~/.config/transponster/config.toml.
func initTarget(flagValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		expanded, err := config.ExpandPath(value)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	target, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return target, nil
}

func writeSampleConfig(target string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	_, err := os.Stat(target)
	switch {
	case err == nil && !overwrite:
		return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("check config path: %w", err)
	}
	if err := config.CreateSample(target); err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	return nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var daemon bool

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if daemon {
				if err := cfg.ValidateDaemon(); err != nil {
					return err
				}
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&daemon, "daemon", false, "Also require the credentials `serve` needs")
	return cmd
}
