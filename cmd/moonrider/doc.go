// Package main hosts the Moonrider CLI entrypoint and command graph.
//
// Commands either run the ingestion pipeline in-process (ingest, map) or
// drive a running moonriderd over its HTTP API (daemon, status, submit,
// abort, events). Configuration is resolved lazily so commands that do not
// need it, such as config init, still work on a fresh machine.
package main
