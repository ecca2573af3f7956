// Package logging assembles structured slog loggers and formatting helpers used
// across Moonrider commands and the daemon.
//
// It owns the console and JSON handlers. The "auto" format writes console
// output to terminals and JSON to files, fanning one record out to both when
// the daemon logs to stderr and its log file. Context-aware helpers tag log
// lines with generation tokens, stages, content versions and correlation IDs.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
