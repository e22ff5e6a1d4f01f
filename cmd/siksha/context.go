package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"siksha/internal/api"
	"siksha/internal/config"
)

type commandContext struct {
	apiFlag    *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

// apiAddress prefers --api, then the configured bind address.
func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return config.Default().Paths.APIBind
}

func (c *commandContext) apiToken() string {
	if c.tokenFlag != nil {
		if token := strings.TrimSpace(*c.tokenFlag); token != "" {
			return token
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIToken
	}
	return ""
}

func (c *commandContext) client() *api.Client {
	return api.NewClient(c.apiAddress(), c.apiToken())
}

// withClient runs fn against the daemon API and rewrites connection
// failures into actionable messages.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	err := fn(c.client())
	if err == nil {
		return nil
	}
	return wrapDialError(err, c.apiAddress())
}

func wrapDialError(err error, addr string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `siksha daemon`", addr)
	}
	return err
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
