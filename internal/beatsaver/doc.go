// Package beatsaver resolves map metadata from the BeatSaver API and converts
// it into pipeline ingest requests.
package beatsaver
