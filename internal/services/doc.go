// Package services defines shared utilities consumed by the ingestion pipeline
// and the surfaces built on top of it.
//
// Key responsibilities:
//   - Context helpers that stamp generation tokens, stage names, content
//     versions, and correlation identifiers for logging and tracing.
//
// Use these helpers when wiring new pipeline stages so log lines emitted deep
// inside a generation carry the same identifiers as the orchestrator's.
package services
