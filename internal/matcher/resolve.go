package matcher

import (
	"path"
	"strings"

	"github.com/unsupervisednn/moonrider/internal/archive"
)

// InfoFileName is the manifest file every archive is expected to carry.
const InfoFileName = "Info.dat"

// Strategy names one way of comparing a declared name with an archive path.
type Strategy string

const (
	StrategyNone             Strategy = ""
	StrategyExact            Strategy = "exact"
	StrategyCaseInsensitive  Strategy = "case-insensitive"
	StrategyBasename         Strategy = "basename"
	StrategyBasenameCaseFold Strategy = "case-insensitive-basename"
)

type resolver struct {
	strategy Strategy
	match    func(declared, candidate string) bool
}

var resolvers = []resolver{
	{StrategyExact, func(d, c string) bool { return normalizePath(d) == normalizePath(c) }},
	{StrategyCaseInsensitive, func(d, c string) bool { return strings.EqualFold(normalizePath(d), normalizePath(c)) }},
	{StrategyBasename, func(d, c string) bool { return baseName(d) == baseName(c) }},
	{StrategyBasenameCaseFold, func(d, c string) bool { return strings.EqualFold(baseName(d), baseName(c)) }},
}

// Resolve finds the archive entry declared as name.
func Resolve(name string, entries []archive.Entry) (archive.Entry, Strategy, bool) {
	if strings.TrimSpace(name) == "" {
		return archive.Entry{}, StrategyNone, false
	}
	for _, r := range resolvers {
		for _, entry := range entries {
			if r.match(name, entry.Path) {
				return entry, r.strategy, true
			}
		}
	}
	return archive.Entry{}, StrategyNone, false
}

// FindInfo locates the Info.dat manifest.
func FindInfo(entries []archive.Entry) (archive.Entry, bool) {
	entry, _, ok := Resolve(InfoFileName, entries)
	return entry, ok
}

// FindAudio returns the first entry whose path ends in one of extensions,
// compared case-insensitively.
func FindAudio(entries []archive.Entry, extensions []string) (archive.Entry, bool) {
	for _, entry := range entries {
		lower := strings.ToLower(entry.Path)
		for _, ext := range extensions {
			if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
				return entry, true
			}
		}
	}
	return archive.Entry{}, false
}

func normalizePath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "./")
}

func baseName(p string) string {
	return path.Base(normalizePath(p))
}
