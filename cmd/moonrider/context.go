package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/unsupervisednn/moonrider/internal/beatsaver"
	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/daemonclient"
	"github.com/unsupervisednn/moonrider/internal/logging"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// logger returns a stderr logger. Pipeline chatter is hidden unless
// --verbose is set.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = cfg.Logging.Level
		if level == "warn" || level == "error" {
			level = "info"
		}
	}
	logCfg := *cfg
	logCfg.Logging.Level = level
	return logging.NewFromConfig(&logCfg, false)
}

func (c *commandContext) apiBind(cfg *config.Config) string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag)
	}
	if cfg == nil {
		return ""
	}
	return cfg.Paths.APIBind
}

func (c *commandContext) apiClient() (*daemonclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	bind := c.apiBind(cfg)
	if bind == "" {
		return nil, fmt.Errorf("daemon API disabled: set paths.api_bind or pass --api")
	}
	return daemonclient.New(bind, cfg.Paths.APIToken)
}

func (c *commandContext) beatSaver(logger *slog.Logger) (*beatsaver.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return beatsaver.New(cfg.BeatSaver.APIURL,
		beatsaver.WithHTTPClient(&http.Client{Timeout: cfg.BeatSaverTimeout()}),
		beatsaver.WithUserAgent(cfg.Fetch.UserAgent),
		beatsaver.WithLogger(logger),
	), nil
}

func wrapAPIError(err error, bind string) error {
	if daemonclient.IsAPIUnavailable(err) {
		return fmt.Errorf("connect to daemon at %s: %w; start it with `moonrider daemon`", bind, err)
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
