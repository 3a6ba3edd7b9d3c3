package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Console lines look like
//
//	2026-03-01T12:00:00Z INFO watcher[watch=3]: file queued for review decision_type=watch_pipeline path=/inbox/a.pdf
//
// The subject before the colon is the component plus whichever of the watch,
// record and batch ids the logger carries. Remaining attributes follow the
// message as key=value pairs, with path last so long paths do not push the
// rest of the line off screen.

// subjectKeys are lifted out of the attribute list into the subject, in this order.
var subjectKeys = []struct{ field, label string }{
	{FieldWatchID, "watch"},
	{FieldRecordID, "record"},
	{FieldBatchID, "batch"},
}

type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	fields := make([]field, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = appendField(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.Grow(160)
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))

	rest := writeSubject(&buf, fields)

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteByte(' ')
	buf.WriteString(msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}

	var paths []field
	for _, f := range rest {
		if f.key == FieldPath {
			paths = append(paths, f)
			continue
		}
		writeField(&buf, f)
	}
	for _, f := range paths {
		writeField(&buf, f)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// writeSubject writes " component[watch=N,record=M]:" when any subject field is
// present and returns the fields left for the key=value tail. The first
// component wins; NewComponentLogger on a component logger does not rename it.
func writeSubject(buf *bytes.Buffer, fields []field) []field {
	var component string
	scope := make(map[string]string, len(subjectKeys))
	rest := fields[:0:0]
	for _, f := range fields {
		switch {
		case f.key == FieldComponent:
			if component == "" {
				component = plainString(f.value)
			}
			continue
		case isSubjectKey(f.key):
			scope[f.key] = formatValue(f.value)
			continue
		}
		rest = append(rest, f)
	}
	if component == "" && len(scope) == 0 {
		return rest
	}
	buf.WriteByte(' ')
	buf.WriteString(component)
	if len(scope) > 0 {
		buf.WriteByte('[')
		first := true
		for _, sk := range subjectKeys {
			value, ok := scope[sk.field]
			if !ok {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.WriteString(sk.label)
			buf.WriteByte('=')
			buf.WriteString(value)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(':')
	return rest
}

func isSubjectKey(key string) bool {
	for _, sk := range subjectKeys {
		if sk.field == key {
			return true
		}
	}
	return false
}

func writeField(buf *bytes.Buffer, f field) {
	if f.key == "" {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(f.key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(f.value))
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type field struct {
	key   string
	value slog.Value
}

func appendField(dst []field, groups []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			groups = append(append([]string(nil), groups...), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			dst = appendField(dst, groups, member)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, field{key: key, value: attr.Value})
}

func plainString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return strings.Trim(formatValue(v), `"`)
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	var s string
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\r=\"") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// LineComponent returns the component that wrote a log line in any of the
// formats filer produces: the console subject, a JSON "component" field, or a
// plain component=name pair. It returns "" when the line names none.
func LineComponent(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var decoded struct {
			Component string `json:"component"`
		}
		if json.Unmarshal([]byte(trimmed), &decoded) == nil {
			return decoded.Component
		}
		return ""
	}
	parts := strings.Fields(trimmed)
	if len(parts) >= 3 && strings.HasSuffix(parts[2], ":") {
		if _, err := time.Parse(time.RFC3339, parts[0]); err == nil {
			subject := strings.TrimSuffix(parts[2], ":")
			if i := strings.IndexByte(subject, '['); i >= 0 {
				subject = subject[:i]
			}
			return subject
		}
	}
	for _, part := range parts {
		if name, ok := strings.CutPrefix(part, FieldComponent+"="); ok {
			return strings.Trim(name, `"`)
		}
	}
	return ""
}
