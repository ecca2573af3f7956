package beatsaver

import (
	"regexp"
	"strings"
)

var extensionPattern = regexp.MustCompile(`(?i)\.[a-z0-9]+$`)

// NormalizeCoverURL rewrites a cover image reference onto host. The last
// path segment of coverURL is used with query and fragment removed; when it
// is empty fallbackHash is used instead. A ".jpg" suffix is appended when the
// name has no extension. It returns "" when neither input yields a name.
func NormalizeCoverURL(host, coverURL, fallbackHash string) string {
	value := strings.TrimSpace(coverURL)
	fallback := strings.TrimSpace(fallbackHash)

	name := value[strings.LastIndex(value, "/")+1:]
	if idx := strings.IndexByte(name, '?'); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.IndexByte(name, '#'); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		name = fallback
	}
	if name == "" {
		return ""
	}
	if !extensionPattern.MatchString(name) {
		name += ".jpg"
	}
	return host + name
}
