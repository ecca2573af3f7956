// Package pipeline orchestrates beatmap ingestion.
//
// A Pipeline is an actor: Run owns the generation supervisor and the outbound
// message queue, while Ingest and Abort post commands to its mailbox. Each
// accepted Ingest starts a generation in its own goroutine that fetches the
// archive, decompresses it, recovers the manifest and matches difficulties.
// Generations report back through the actor, which drops anything from a
// generation that is no longer current. Once Ingest returns, no message from
// an earlier generation is delivered.
package pipeline
