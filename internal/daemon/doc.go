// Package daemon runs the long-lived Moonrider process.
//
// It wires configuration, metrics and the ingestion pipeline into a single
// lifecycle guarded by a flock so only one instance runs per log directory.
// Pipeline messages are recorded in a bounded EventHub that HTTP clients poll
// or long-poll through /api/events; the audio of the latest completed
// generation is served from /api/audio.
package daemon
