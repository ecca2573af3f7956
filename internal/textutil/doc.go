// Package textutil sanitizes names taken from beatmap manifests before they
// are used as directory or file names on disk.
package textutil
