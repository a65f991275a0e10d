package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ComponentKey is the attribute the line handler lifts into the origin tag.
const ComponentKey = "component"

// DefaultOrigin is printed when a record carries no component.
const DefaultOrigin = "ENGINE"

const lineTimeLayout = "2006/01/02 15-04-05"

// LineHandler writes one record per line in the form
//
//	2006/01/02 15-04-05 INFO  [SERVER] message key=value
//
// The component attribute becomes the bracketed origin.
type LineHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
	origin string
}

// NewLineHandler creates a LineHandler writing to out.
func NewLineHandler(out io.Writer, level slog.Leveler) *LineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LineHandler{mu: &sync.Mutex{}, out: out, level: level}
}

// Enabled implements slog.Handler.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	origin := h.origin
	if origin == "" {
		origin = DefaultOrigin
	}
	var extra bytes.Buffer

	for _, a := range h.attrs {
		fmt.Fprintf(&extra, " %s=%s", a.Key, quoteIfNeeded(a.Value.String()))
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return true
		}
		if a.Key == ComponentKey && h.prefix == "" {
			origin = strings.ToUpper(a.Value.String())
			return true
		}
		fmt.Fprintf(&extra, " %s%s=%s", h.prefix, a.Key, quoteIfNeeded(a.Value.String()))
		return true
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%-19s %-5s [%s] %s",
		r.Time.Format(lineTimeLayout), levelTag(r.Level), origin, r.Message)
	buf.Write(extra.Bytes())
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

// WithAttrs implements slog.Handler.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Key == ComponentKey && h.prefix == "" {
			nh.origin = strings.ToUpper(a.Value.String())
			continue
		}
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

// WithGroup implements slog.Handler. Groups are flattened into dotted keys.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slogLevelFatal:
		return "FATAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
