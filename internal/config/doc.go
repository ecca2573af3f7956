// Package config loads, normalizes, and validates Moonrider configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MOONRIDER_LOG_LEVEL
// environment override. The Config type centralizes every knob the daemon and
// CLI need: download client behaviour, archive limits, accepted audio
// extensions, the BeatSaver endpoints, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
