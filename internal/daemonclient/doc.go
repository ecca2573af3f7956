// Package daemonclient is the HTTP client the CLI uses to drive a running
// moonriderd: submitting ingest and abort commands, reading status, paging
// or following the event stream and fetching result audio.
package daemonclient
