// Package notifications delivers ingest outcomes to ntfy.
//
// The daemon publishes completed and failed generations. Events without a
// rendering are dropped, and without a configured topic NewService returns a
// no-op.
package notifications
