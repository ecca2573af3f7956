package manifest

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"github.com/tidwall/jsonc"
	"golang.org/x/text/encoding/unicode"
)

// Strategy decodes raw bytes into text. ok is false when the strategy cannot
// apply to the input at all.
type Strategy struct {
	Name   string
	Decode func(raw []byte) (text string, ok bool)
}

// Strategies lists the decoders tried by Recover, in order.
var Strategies = []Strategy{
	{Name: "utf-8", Decode: decodeUTF8},
	{Name: "utf-16le", Decode: decodeUTF16LE},
}

// Recover returns the first strategy result that sanitizes into valid JSON.
func Recover(raw []byte) ([]byte, bool) {
	doc, _, ok := RecoverStrategy(raw)
	return doc, ok
}

// RecoverStrategy is Recover that also names the strategy that succeeded.
func RecoverStrategy(raw []byte) ([]byte, string, bool) {
	if len(raw) == 0 {
		return nil, "", false
	}
	for _, strategy := range Strategies {
		text, ok := strategy.Decode(raw)
		if !ok {
			continue
		}
		if doc, ok := normalize(Sanitize(text)); ok {
			return doc, strategy.Name, true
		}
	}
	return nil, "", false
}

// Sanitize removes NUL and replacement characters and drops everything ahead
// of the first '{'. It returns "" when no '{' is present.
func Sanitize(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == 0 || r == utf8.RuneError {
			return -1
		}
		return r
	}, text)
	idx := strings.IndexByte(text, '{')
	if idx < 0 {
		return ""
	}
	return text[idx:]
}

// DetectCharset guesses the encoding of raw for diagnostics. It returns ""
// when no guess is available.
func DetectCharset(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}

func normalize(text string) ([]byte, bool) {
	if text == "" {
		return nil, false
	}
	doc := jsonc.ToJSON([]byte(text))
	doc = bytes.TrimSpace(doc)
	if !json.Valid(doc) {
		return nil, false
	}
	return doc, true
}

// decodeUTF8 accepts valid UTF-8 and repairs invalid sequences. Input that
// only becomes valid UTF-8 once NUL bytes are removed is single-byte text
// stored as UTF-16LE and is accepted. Input whose NULs are laid out like
// UTF-16 code units is left to the UTF-16 strategy so multi-byte characters
// survive; stray NUL padding in 8-bit text does not count.
func decodeUTF8(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return string(raw), true
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		stripped := bytes.ReplaceAll(raw, []byte{0}, nil)
		if utf8.Valid(stripped) {
			return string(stripped), true
		}
		if looksUTF16(raw) {
			return "", false
		}
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), true
}

// looksUTF16 reports whether NUL bytes cluster on one byte parity and make up
// a sizeable share of the code units, as they do in UTF-16 text with mostly
// ASCII content.
func looksUTF16(raw []byte) bool {
	var even, odd int
	for i, b := range raw {
		if b != 0 {
			continue
		}
		if i%2 == 0 {
			even++
		} else {
			odd++
		}
	}
	dominant, other := max(even, odd), min(even, odd)
	return dominant*8 >= len(raw) && dominant >= 4*other
}

func decodeUTF16LE(raw []byte) (string, bool) {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
