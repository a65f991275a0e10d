package request

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athena-engine/athena/internal/logging"
)

func TestParseRequestLine(t *testing.T) {
	testCases := []struct {
		name    string
		line    string
		method  Method
		target  string
		version Version
	}{
		{"get", "GET /index.html HTTP/1.1", MethodGet, "/index.html", Version11},
		{"post", "POST /form HTTP/1.0", MethodPost, "/form", Version10},
		{"http2", "GET / HTTP/2", MethodGet, "/", Version20},
		{"unsupported method", "DELETE /x HTTP/1.1", MethodUnsupported, "/x", Version11},
		{"lowercase method", "get /x HTTP/1.1", MethodUnsupported, "/x", Version11},
		{"unsupported version", "GET /x HTTP/3", MethodGet, "/x", VersionUnsupported},
		{"extra tokens", "GET /x HTTP/1.1 trailing", MethodGet, "/x", Version11},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParseLines([]string{tc.line})

			assert.Equal(t, tc.method, req.Method())
			assert.Equal(t, tc.version, req.Version())
			target, ok := req.Target()
			require.True(t, ok)
			assert.Equal(t, tc.target, target)
		})
	}
}

func TestParseShortRequestLine(t *testing.T) {
	for _, line := range []string{"", "GET", "GET /", "GET\t/\tHTTP/1.1"} {
		t.Run(line, func(t *testing.T) {
			req := ParseLines([]string{line, "Host: example.com"})

			assert.Equal(t, MethodNone, req.Method())
			assert.Equal(t, VersionNone, req.Version())
			_, ok := req.Target()
			assert.False(t, ok)
			assert.Equal(t, "example.com", req.Host())
		})
	}
}

func TestParseEmptyInput(t *testing.T) {
	req := Parse(nil)

	assert.Equal(t, MethodNone, req.Method())
	_, ok := req.Target()
	assert.False(t, ok)
	_, ok = req.Body()
	assert.False(t, ok)
	assert.Empty(t, req.Headers())
}

func TestParseHeaders(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n" +
		"host:   example.com  \r\n" +
		"User-Agent: curl/8.0\r\n" +
		"accept: text/html\r\n" +
		"Accept: application/json\r\n" +
		"X-Broken-Header\r\n" +
		"X-Value: a: b\r\n" +
		"\r\n"

	req := Parse([]byte(raw))

	assert.Equal(t, "example.com", req.Host())
	ua, ok := req.UserAgent()
	require.True(t, ok)
	assert.Equal(t, "curl/8.0", ua)

	accept, ok := req.Header("ACCEPT")
	require.True(t, ok)
	assert.Equal(t, "application/json", accept)

	v, ok := req.Header("x-value")
	require.True(t, ok)
	assert.Equal(t, "a: b", v)

	_, ok = req.Header("X-Broken-Header")
	assert.False(t, ok)
	_, ok = req.Header("Host")
	assert.False(t, ok)

	_, ok = req.Body()
	assert.False(t, ok)
}

func TestParseCookies(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		expected map[string]string
	}{
		{"pair list", "Cookie: a=1,b=2", map[string]string{"a": "1", "b": "2"}},
		{"single pair", "Cookie: session=abc", map[string]string{"session": "abc"}},
		{"no equals", "Cookie: bad", map[string]string{}},
		{"mixed", "cookie: a=1, bad, c=3", map[string]string{"a": "1", "c": "3"}},
		{"duplicate wins last", "Cookie: a=1,a=2", map[string]string{"a": "2"}},
		{"empty name", "Cookie: =x", map[string]string{}},
		{"value with equals", "Cookie: tok=a=b", map[string]string{"tok": "a=b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParseLines([]string{"GET / HTTP/1.1", tc.header})
			assert.Equal(t, tc.expected, req.Cookies())
		})
	}
}

func TestParseQuery(t *testing.T) {
	testCases := []struct {
		name     string
		target   string
		expected map[string]string
	}{
		{"percent decoded", "/p?name=a%20b", map[string]string{"name": "a b"}},
		{"two pairs", "/p?x=1&y=2", map[string]string{"x": "1", "y": "2"}},
		{"plus literal", "/p?q=a+b", map[string]string{"q": "a+b"}},
		{"no query", "/p", map[string]string{}},
		{"pair without value", "/p?flag&x=1", map[string]string{"x": "1"}},
		{"duplicate wins last", "/p?x=1&x=2", map[string]string{"x": "2"}},
		{"malformed escape dropped", "/p?a=%zz&b=ok", map[string]string{"b": "ok"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParseLines([]string{"GET " + tc.target + " HTTP/1.1"})
			assert.Equal(t, tc.expected, req.QueryParams())

			path, ok := req.Path()
			require.True(t, ok)
			assert.Equal(t, "/p", path)
		})
	}
}

func TestMalformedQueryIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: logging.FormatLine, Output: &buf})
	p := NewParser(logger)

	req := p.ParseLines(context.Background(), []string{"GET /p?a=%zz HTTP/1.1"})

	assert.Empty(t, req.QueryParams())
	assert.Contains(t, buf.String(), "WARNING [PARSER] Dropping query parameter")
	assert.Contains(t, buf.String(), "key=a")
}

func TestParseBody(t *testing.T) {
	t.Run("body lines keep CRLF", func(t *testing.T) {
		raw := "POST /form HTTP/1.1\r\nHost: x\r\n\r\nline one\r\n\r\nline three"
		req := Parse([]byte(raw))

		body, ok := req.Body()
		require.True(t, ok)
		assert.Equal(t, "line one\r\n\r\nline three\r\n", body)
	})

	t.Run("trailing CRLF is not a body line", func(t *testing.T) {
		req := Parse([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		_, ok := req.Body()
		assert.False(t, ok)
	})

	t.Run("header-like body lines stay in body", func(t *testing.T) {
		req := ParseLines([]string{"POST / HTTP/1.1", "", "Cookie: a=1"})
		body, ok := req.Body()
		require.True(t, ok)
		assert.Equal(t, "Cookie: a=1\r\n", body)
		assert.Empty(t, req.Cookies())
	})

	t.Run("whitespace line separates", func(t *testing.T) {
		req := ParseLines([]string{"POST / HTTP/1.1", "  \t", "data"})
		body, ok := req.Body()
		require.True(t, ok)
		assert.Equal(t, "data\r\n", body)
	})

	t.Run("trailing NUL bytes ignored", func(t *testing.T) {
		buf := make([]byte, 64)
		copy(buf, "GET / HTTP/1.1\r\n\r\n")
		req := Parse(buf)
		assert.Equal(t, MethodGet, req.Method())
		_, ok := req.Body()
		assert.False(t, ok)
	})
}

func TestRequestIsImmutable(t *testing.T) {
	req := ParseLines([]string{"GET /p?x=1 HTTP/1.1", "Cookie: a=1", "X-A: 1"})

	req.QueryParams()["x"] = "changed"
	req.Cookies()["a"] = "changed"
	req.Headers()["X-A"] = "changed"

	v, _ := req.Query("x")
	assert.Equal(t, "1", v)
	v, _ = req.Cookie("a")
	assert.Equal(t, "1", v)
	v, _ = req.Header("X-A")
	assert.Equal(t, "1", v)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "HTTP/1.0", Version10.String())
	assert.Equal(t, "HTTP/1.1", Version11.String())
	assert.Equal(t, "HTTP/2.0", Version20.String())
	assert.Equal(t, "HTTP/1.1", VersionUnsupported.String())
	assert.Equal(t, "HTTP/1.1", VersionNone.String())
	assert.False(t, VersionUnsupported.Supported())
	assert.True(t, Version20.Supported())
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "GET", MethodGet.String())
	assert.Equal(t, "POST", MethodPost.String())
	assert.False(t, MethodUnsupported.Supported())
	assert.False(t, MethodNone.Supported())
}
