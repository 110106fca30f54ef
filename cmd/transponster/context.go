package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"transponster/internal/api"
	"transponster/internal/config"
	"transponster/internal/logging"
	"transponster/internal/mapping"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiClient returns a client for the running daemon. The --api flag wins
// over paths.api_bind.
func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	bind := cfg.Paths.APIBind
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		bind = strings.TrimSpace(*c.apiFlag)
	}
	client, err := api.NewClient(bind, cfg.Paths.APIToken)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("paths.api_bind is empty; the daemon API is disabled")
	}
	return client, nil
}

// withStore opens the local mapping database for commands that work without
// the daemon.
func (c *commandContext) withStore(fn func(*mapping.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := mapping.Open(cfg)
	if err != nil {
		return fmt.Errorf("open mapping store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// commandLogger writes console logs to stderr so stdout stays parseable.
func (c *commandContext) commandLogger(cmd *cobra.Command) *slog.Logger {
	cfg := c.configValue()
	level := "info"
	if cfg != nil && cfg.Logging.Level != "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: "console",
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
