// Package manifest recovers JSON documents from beatmap archives.
//
// Archive files are not reliably encoded: some are UTF-8, some UTF-16LE, some
// carry a byte order mark or stray bytes ahead of the opening brace. Recover
// walks an ordered table of decoding strategies and returns the first result
// that sanitizes into valid JSON. Failure is reported as a boolean, never as
// an error, so callers decide whether an unreadable document is fatal.
package manifest
