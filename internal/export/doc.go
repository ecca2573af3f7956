// Package export writes a completed ingestion result to disk as a playable
// beatmap folder: the song file, Info.dat, one file per resolved difficulty
// and a moonrider.json summary.
package export
