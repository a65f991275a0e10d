package request

import (
	"context"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/logging"
)

// CRLF terminates every request line.
const CRLF = "\r\n"

// Parser builds Requests. It never fails; malformed pieces are dropped
// field by field and query decode problems are logged.
type Parser struct {
	logger logging.Logger
}

// NewParser creates a parser that reports decode problems to logger.
func NewParser(logger logging.Logger) *Parser {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Parser{logger: logger.WithComponent("parser")}
}

var defaultParser = NewParser(nil)

// Parse parses a raw request buffer with a parser that does not log.
func Parse(raw []byte) *Request { return defaultParser.Parse(context.Background(), raw) }

// ParseLines parses pre-split lines with a parser that does not log.
func ParseLines(lines []string) *Request {
	return defaultParser.ParseLines(context.Background(), lines)
}

// Parse splits raw on CRLF and parses the resulting lines. A single
// trailing CRLF does not produce an extra empty line.
func (p *Parser) Parse(ctx context.Context, raw []byte) *Request {
	text := strings.TrimRight(string(raw), "\x00")
	if text == "" {
		return p.ParseLines(ctx, nil)
	}
	lines := strings.Split(text, CRLF)
	if strings.HasSuffix(text, CRLF) {
		lines = lines[:len(lines)-1]
	}
	return p.ParseLines(ctx, lines)
}

// ParseLines parses a request from lines with their terminators removed.
// Line 0 is the request line; everything up to the first blank line is a
// header; everything after it is body.
func (p *Parser) ParseLines(ctx context.Context, lines []string) *Request {
	req := &Request{
		headers: make(map[string]string),
		cookies: make(map[string]string),
		query:   make(map[string]string),
	}
	if len(lines) == 0 {
		return req
	}

	p.parseRequestLine(ctx, req, lines[0])

	var body strings.Builder
	inBody := false
	for _, line := range lines[1:] {
		if inBody {
			body.WriteString(line)
			body.WriteString(CRLF)
			req.hasBody = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			inBody = true
			continue
		}
		p.parseHeaderLine(req, line)
	}
	req.body = body.String()

	return req
}

func (p *Parser) parseRequestLine(ctx context.Context, req *Request, line string) {
	tokens := strings.Split(line, " ")
	if len(tokens) < 3 {
		return
	}

	req.method = parseMethod(tokens[0])
	req.target = tokens[1]
	req.hasTarget = true
	req.version = parseVersion(tokens[2])

	if _, rawQuery, ok := strings.Cut(req.target, "?"); ok {
		p.parseQuery(ctx, req, rawQuery)
	}
}

func (p *Parser) parseHeaderLine(req *Request, line string) {
	if value, ok := cutPrefixFold(line, "Host:"); ok {
		req.host = strings.TrimSpace(value)
		return
	}
	if value, ok := cutPrefixFold(line, "Cookie:"); ok {
		parseCookies(req.cookies, value)
		return
	}

	name, value, ok := strings.Cut(line, ": ")
	if !ok {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	req.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// parseCookies splits a Cookie header value on commas. Pairs without an
// '=' or with an empty name are dropped.
func parseCookies(dst map[string]string, value string) {
	for _, pair := range strings.Split(value, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dst[name] = strings.TrimSpace(val)
	}
}

// parseQuery decodes the value of each key=value pair. '+' stays literal.
func (p *Parser) parseQuery(ctx context.Context, req *Request, rawQuery string) {
	for _, pair := range strings.Split(rawQuery, "&") {
		key, rawValue, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		value, err := url.PathUnescape(rawValue)
		if err != nil {
			p.logger.Warn(ctx,
				errors.NewProtocolError(errors.ErrCodeMalformedQuery, "malformed query value", err),
				"Dropping query parameter",
				"key", key)
			continue
		}
		req.query[key] = value
	}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
