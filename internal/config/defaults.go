package config

const (
	defaultLogDir              = "~/.local/share/moonrider/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultUserAgent           = "Moonrider/dev"
	defaultFetchTimeoutSeconds = 120
	defaultMaxArchiveMiB       = 64
	defaultChunkKiB            = 32
	defaultMaxEntries          = 256
	defaultMaxEntryMiB         = 64
	defaultBeatSaverAPIURL     = "https://api.beatsaver.com"
	defaultBeatSaverCDNURL     = "https://cdn.beatsaver.com/"
	defaultBeatSaverTimeout    = 10
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
)

// DefaultAudioExtensions are the entry suffixes accepted as the level's audio.
var DefaultAudioExtensions = []string{".egg", ".ogg"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Fetch: Fetch{
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxArchiveMiB:  defaultMaxArchiveMiB,
			ChunkKiB:       defaultChunkKiB,
		},
		Archive: Archive{
			MaxEntries:  defaultMaxEntries,
			MaxEntryMiB: defaultMaxEntryMiB,
		},
		Audio: Audio{
			Extensions: append([]string(nil), DefaultAudioExtensions...),
		},
		BeatSaver: BeatSaver{
			APIURL:         defaultBeatSaverAPIURL,
			CDNURL:         defaultBeatSaverCDNURL,
			TimeoutSeconds: defaultBeatSaverTimeout,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
