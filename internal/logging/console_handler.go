package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders a one-line header per record followed by indented
// "key: value" lines for the remaining attributes.
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string
	preset    []field
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	fields := append([]field(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})
	fields = lastWins(fields)

	var component, generation, stage string
	body := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = attrString(f.value)
		case FieldGeneration:
			generation = attrString(f.value)
		case FieldStage:
			stage = attrString(f.value)
		default:
			if record.Level < slog.LevelInfo || !hiddenAtInfo(f.key) {
				body = append(body, f)
			}
		}
	}

	var b strings.Builder
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(formatTimestamp(ts))
	b.WriteString(" " + levelLabel(record.Level))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := FormatSubject(generation, stage); subject != "" {
		b.WriteString(" " + subject)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" – " + msg)
	if src := record.Source(); h.addSource && src != nil && src.File != "" {
		b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	b.WriteByte('\n')
	for _, f := range body {
		b.WriteString("    - " + f.key + ": " + formatValue(f.value) + "\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append([]field(nil), h.preset...)
	for _, attr := range attrs {
		next.preset = appendField(next.preset, h.prefix, attr)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// hiddenAtInfo lists correlation keys only shown at debug level.
func hiddenAtInfo(key string) bool {
	return key == FieldCorrelationID || key == FieldEventType
}

// appendField flattens attr into dotted keys under prefix.
func appendField(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	v := attr.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return append(dst, field{key: prefix + attr.Key, value: v})
	}
	inner := prefix
	if attr.Key != "" {
		inner += attr.Key + "."
	}
	for _, child := range v.Group() {
		dst = appendField(dst, inner, child)
	}
	return dst
}

// lastWins drops earlier duplicates while keeping first-seen order.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, seen := index[f.key]; seen {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
