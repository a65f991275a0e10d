// Package renderer expands the engine's page template markers.
//
// A page is only processed when it contains the root marker and at least
// one line break. Variables are written as <#>var.NAME and replaced with
// the value of the matching binding. A block between a line starting with
// <#>control.for START,END and a line starting with <#>control.for_end is
// repeated END-START times. Any malformed marker makes the whole render
// fail closed: the input is returned untouched.
package renderer

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/logging"
)

const (
	RootMarker     = "<#>"
	VarMarker      = RootMarker + "var."
	ForMarker      = RootMarker + "control.for"
	ForEndMarker   = RootMarker + "control.for_end"
	lineTerminator = "\r\n"
)

// MaxLoopCount bounds the repeat count of a single for block. Larger
// spans are syntax errors.
const MaxLoopCount = 10000

// Bindings maps variable names to value producers. Producers are called
// at most once per render.
type Bindings map[string]func() string

// Static builds Bindings that return fixed values.
func Static(values map[string]string) Bindings {
	b := make(Bindings, len(values))
	for name, value := range values {
		v := value
		b[name] = func() string { return v }
	}
	return b
}

// Merge returns a new Bindings with later sets overriding earlier ones.
func Merge(sets ...Bindings) Bindings {
	out := make(Bindings)
	for _, set := range sets {
		for name, fn := range set {
			out[name] = fn
		}
	}
	return out
}

// Engine renders templates. It holds no per-render state.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates an engine that logs syntax errors to logger.
func NewEngine(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{logger: logger.WithComponent("template")}
}

// Render expands html. On a syntax error it logs and returns html unchanged.
func (e *Engine) Render(ctx context.Context, html string, bindings Bindings) string {
	out, err := Expand(html, bindings)
	if err != nil {
		e.logger.Warn(ctx, err, "Template syntax error, serving original page")
		return html
	}
	return out
}

// Expand is Render without logging. On error it returns html unchanged
// together with the error.
func Expand(html string, bindings Bindings) (string, error) {
	if !strings.Contains(html, RootMarker) || !strings.Contains(html, "\n") {
		return html, nil
	}

	text, err := substitute(html, bindings)
	if err != nil {
		return html, err
	}

	text, err = expandLoops(text)
	if err != nil {
		return html, err
	}

	return text, nil
}

// substitute replaces variable markers. Longer names go first so that a
// binding never consumes the prefix of another.
func substitute(text string, bindings Bindings) (string, error) {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		marker := VarMarker + name
		if !strings.Contains(text, marker) {
			continue
		}
		fn := bindings[name]
		value := ""
		if fn != nil {
			value = fn()
		}
		text = strings.ReplaceAll(text, marker, value)
	}

	if i := strings.Index(text, VarMarker); i >= 0 {
		return "", errors.NewTemplateError(errors.ErrCodeTemplateSyntax, "unresolved variable").
			WithContext("variable", variableAt(text[i+len(VarMarker):]))
	}
	return text, nil
}

func variableAt(s string) string {
	end := strings.IndexAny(s, " \t\r\n<>\"'")
	if end < 0 {
		return s
	}
	return s[:end]
}

// loop holds the lines captured since an open tag.
type loop struct {
	open  string
	body  []string
	count int
}

// expandLoops rewrites for blocks line by line. A second open tag inside
// a block abandons the first one, which is then emitted verbatim. An open
// tag without a matching close is emitted verbatim too.
func expandLoops(text string) (string, error) {
	lines := strings.Split(text, lineTerminator)

	var out strings.Builder
	out.Grow(len(text))

	var current *loop
	flush := func() {
		if current == nil {
			return
		}
		out.WriteString(current.open)
		for _, line := range current.body {
			out.WriteString(line)
		}
		current = nil
	}

	for i, line := range lines {
		raw := line
		if i < len(lines)-1 {
			raw += lineTerminator
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, ForEndMarker):
			if current == nil {
				out.WriteString(raw)
				continue
			}
			for n := 0; n < current.count; n++ {
				for _, body := range current.body {
					out.WriteString(body)
				}
			}
			current = nil

		case strings.HasPrefix(trimmed, ForMarker):
			count, err := loopCount(strings.TrimPrefix(trimmed, ForMarker))
			if err != nil {
				return "", err
			}
			flush()
			current = &loop{open: raw, count: count}

		case current != nil:
			current.body = append(current.body, raw)

		default:
			out.WriteString(raw)
		}
	}
	flush()

	return out.String(), nil
}

// loopCount parses "START,END". Unparsable bounds count as 0 and a
// negative span repeats nothing.
func loopCount(args string) (int, error) {
	startText, endText, ok := strings.Cut(args, ",")
	if !ok {
		return 0, errors.NewTemplateError(errors.ErrCodeTemplateSyntax, "for tag needs START,END").
			WithContext("args", strings.TrimSpace(args))
	}
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		start = 0
	}
	end, err := strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		end = 0
	}
	if end < start {
		return 0, nil
	}
	// end >= start, so the unsigned difference is exact even where
	// end-start would overflow int.
	span := uint64(end) - uint64(start)
	if span > MaxLoopCount {
		return 0, errors.NewTemplateError(errors.ErrCodeTemplateSyntax, "for span too large").
			WithContext("span", span)
	}
	return int(span), nil
}
