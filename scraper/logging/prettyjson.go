package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// PrettyJSONHandler is a slog.Handler that prints one indented JSON object
// per record. time, level, msg and source come first; attributes follow in
// the order they were added.
//
// It is geared toward CLI logs and is not optimized for throughput.
type PrettyJSONHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	attrs  []slog.Attr
	groups []string
}

func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	var level slog.Leveler = slog.LevelInfo
	addSource := false
	if opts != nil {
		if opts.Level != nil {
			level = opts.Level
		}
		addSource = opts.AddSource
	}

	return &PrettyJSONHandler{
		w:         w,
		mu:        &sync.Mutex{},
		level:     level,
		addSource: addSource,
	}
}

func (h *PrettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// field keeps top-level keys in insertion order.
type field struct {
	key string
	val any
}

func (h *PrettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	fields := []field{
		{"time", when.Format(time.RFC3339Nano)},
		{"level", r.Level.String()},
		{"msg", r.Message},
	}
	if h.addSource {
		if src := sourceFromPC(r.PC); src != "" {
			fields = append(fields, field{"source", src})
		}
	}

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	if len(h.groups) == 0 {
		for _, a := range attrs {
			a = resolveAttr(a)
			if a.Key == "" {
				continue
			}
			fields = append(fields, field{a.Key, attrValue(a.Value)})
		}
	} else if len(attrs) > 0 {
		// Grouped attributes nest under the outermost group.
		root := map[string]any{}
		dst := root
		for _, g := range h.groups[1:] {
			m := map[string]any{}
			dst[g] = m
			dst = m
		}
		for _, a := range attrs {
			a = resolveAttr(a)
			if a.Key != "" {
				dst[a.Key] = attrValue(a.Value)
			}
		}
		fields = append(fields, field{h.groups[0], root})
	}

	b, err := encodeFields(fields)
	if err != nil {
		// Fall back to the fixed keys rather than dropping the record.
		b = []byte("{\"time\":" + strconv.Quote(fields[0].val.(string)) + ",\"level\":" + strconv.Quote(r.Level.String()) + ",\"msg\":" + strconv.Quote(r.Message) + "}")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func encodeFields(fields []field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		seen[f.key]++
	}
	written := 0
	for _, f := range fields {
		// Later attributes with the same key win.
		if seen[f.key]--; seen[f.key] > 0 {
			continue
		}
		v, err := json.MarshalIndent(f.val, "  ", "  ")
		if err != nil {
			return nil, err
		}
		if written > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  ")
		buf.WriteString(strconv.Quote(f.key))
		buf.WriteString(": ")
		buf.Write(v)
		written++
	}
	buf.WriteString("\n}")
	return buf.Bytes(), nil
}

func (h *PrettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	if v.Kind() != slog.KindGroup {
		return valueToAny(v)
	}
	child := map[string]any{}
	for _, ga := range v.Group() {
		ga = resolveAttr(ga)
		if ga.Key != "" {
			child[ga.Key] = attrValue(ga.Value)
		}
	}
	return child
}

func valueToAny(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.String()
	}
}

func resolveAttr(a slog.Attr) slog.Attr {
	if a.Key == "" {
		return a
	}
	a.Value = a.Value.Resolve()
	return a
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
