package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateBeatSaver(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.APIBind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxArchiveMiB < 0 {
		return errors.New("fetch.max_archive_mib must be positive")
	}
	if c.Fetch.ChunkKiB < 0 {
		return errors.New("fetch.chunk_kib must be positive")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive.MaxEntries < 0 {
		return errors.New("archive.max_entries must be positive")
	}
	if c.Archive.MaxEntryMiB < 0 {
		return errors.New("archive.max_entry_mib must be positive")
	}
	return nil
}

func (c *Config) validateBeatSaver() error {
	for key, value := range map[string]string{
		"beatsaver.api_url": c.BeatSaver.APIURL,
		"beatsaver.cdn_url": c.BeatSaver.CDNURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
		}
	}
	if c.BeatSaver.TimeoutSeconds < 0 {
		return errors.New("beatsaver.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", topic)
		}
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
