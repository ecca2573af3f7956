package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unsupervisednn/moonrider/internal/config"
)

var skipConfigLoad = map[string]string{"skipConfigLoad": "true"}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration utilities"}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				switch _, statErr := os.Stat(target); {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\nEdit beatsaver.api_url or notifications.ntfy_topic before starting moonriderd.\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func resolveInitTarget(flagValue string) (string, error) {
	if target := strings.TrimSpace(flagValue); target != "" {
		expanded, err := config.ExpandPath(target)
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

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration and print the effective settings",
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			source := path
			if !exists {
				source = path + " (missing, defaults used)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				settingsRows(cfg, source),
				nil,
			))
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}
}

func settingsRows(cfg *config.Config, source string) [][]string {
	orDisabled := func(s string) string {
		if s == "" {
			return "disabled"
		}
		return s
	}
	token := "none"
	if cfg.Paths.APIToken != "" {
		token = "set"
	}
	return [][]string{
		{"Config file", source},
		{"Log directory", cfg.Paths.LogDir},
		{"Daemon API", orDisabled(cfg.Paths.APIBind)},
		{"API token", token},
		{"BeatSaver API", cfg.BeatSaver.APIURL},
		{"Max archive", strconv.Itoa(cfg.Fetch.MaxArchiveMiB) + " MiB"},
		{"Audio extensions", strings.Join(cfg.Audio.Extensions, ", ")},
		{"Notifications", orDisabled(cfg.Notifications.NtfyTopic)},
		{"Log format", cfg.Logging.Format + " / " + cfg.Logging.Level},
	}
}
