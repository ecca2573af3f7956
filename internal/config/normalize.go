package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeArchive()
	c.normalizeAudio()
	c.normalizeBeatSaver()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if token := strings.TrimSpace(os.Getenv("MOONRIDER_API_TOKEN")); token != "" {
		c.Paths.APIToken = token
	}
	return nil
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Fetch.MaxArchiveMiB == 0 {
		c.Fetch.MaxArchiveMiB = defaultMaxArchiveMiB
	}
	if c.Fetch.ChunkKiB == 0 {
		c.Fetch.ChunkKiB = defaultChunkKiB
	}
}

func (c *Config) normalizeArchive() {
	if c.Archive.MaxEntries == 0 {
		c.Archive.MaxEntries = defaultMaxEntries
	}
	if c.Archive.MaxEntryMiB == 0 {
		c.Archive.MaxEntryMiB = defaultMaxEntryMiB
	}
}

func (c *Config) normalizeAudio() {
	seen := make(map[string]struct{}, len(c.Audio.Extensions))
	exts := make([]string, 0, len(c.Audio.Extensions))
	for _, ext := range c.Audio.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, DefaultAudioExtensions...)
	}
	c.Audio.Extensions = exts
}

func (c *Config) normalizeBeatSaver() {
	c.BeatSaver.APIURL = strings.TrimRight(strings.TrimSpace(c.BeatSaver.APIURL), "/")
	if c.BeatSaver.APIURL == "" {
		c.BeatSaver.APIURL = defaultBeatSaverAPIURL
	}
	c.BeatSaver.CDNURL = strings.TrimSpace(c.BeatSaver.CDNURL)
	if c.BeatSaver.CDNURL == "" {
		c.BeatSaver.CDNURL = defaultBeatSaverCDNURL
	}
	if !strings.HasSuffix(c.BeatSaver.CDNURL, "/") {
		c.BeatSaver.CDNURL += "/"
	}
	if c.BeatSaver.TimeoutSeconds == 0 {
		c.BeatSaver.TimeoutSeconds = defaultBeatSaverTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	if level, ok := os.LookupEnv("MOONRIDER_LOG_LEVEL"); ok && strings.TrimSpace(level) != "" {
		c.Logging.Level = level
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
